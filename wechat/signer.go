package wechat

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// SignatureAlgorithm Authorization 头中的签名算法标识
const SignatureAlgorithm = "WECHATPAY2-SHA256-RSA2048"

// Signer 使用商户私钥做 SHA256-RSA 签名，可并发使用
type Signer struct {
	privateKey *rsa.PrivateKey
}

// NewSigner 创建签名器
func NewSigner(credential *MerchantCredential) *Signer {
	return &Signer{privateKey: credential.privateKey}
}

// Sign 对 message 做 RSA PKCS#1 v1.5 + SHA-256 签名，返回 base64
func (s *Signer) Sign(message []byte) (string, error) {
	if s == nil || s.privateKey == nil {
		return "", &SigningError{Err: errors.New("private key not loaded")}
	}

	hash := sha256.Sum256(message)
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", &SigningError{Err: err}
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// VerifySignature 使用公钥校验 base64 签名
func VerifySignature(publicKey *rsa.PublicKey, message []byte, signature string) error {
	signatureBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	hash := sha256.Sum256(message)
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, hash[:], signatureBytes); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// ==================== nonce / timestamp ====================

const (
	nonceLength  = 32
	nonceSymbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var nonceSymbolCount = big.NewInt(int64(len(nonceSymbols)))

// GenerateNonce 生成32位随机字母数字串
func GenerateNonce() (string, error) {
	b := make([]byte, nonceLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, nonceSymbolCount)
		if err != nil {
			return "", fmt.Errorf("generate nonce: %w", err)
		}
		b[i] = nonceSymbols[n.Int64()]
	}
	return string(b), nil
}

func formatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
