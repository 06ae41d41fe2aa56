package wechat

import (
	"errors"
	"fmt"
	"time"
)

// SignTypeRSA 小程序调起支付签名类型
const SignTypeRSA = "RSA"

// InvocationPayload 小程序 wx.requestPayment 所需参数
type InvocationPayload struct {
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

// InvocationSigner 生成调起支付的二次签名
type InvocationSigner struct {
	signer *Signer
	now    func() time.Time
}

// NewInvocationSigner 创建调起支付签名器
func NewInvocationSigner(credential *MerchantCredential) *InvocationSigner {
	return &InvocationSigner{
		signer: NewSigner(credential),
		now:    time.Now,
	}
}

// Build 签名串：appid\ntimestamp\nnonce\nprepay_id=xxx\n
// 时间戳和随机串每次重新生成，与下单请求无关
func (s *InvocationSigner) Build(appID, prepayID string) (*InvocationPayload, error) {
	if appID == "" {
		return nil, errors.New("appid is required")
	}
	if prepayID == "" {
		return nil, ErrMissingPrepayID
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	timestamp := formatTimestamp(s.now())
	pkg := "prepay_id=" + prepayID

	message := fmt.Sprintf("%s\n%s\n%s\n%s\n", appID, timestamp, nonce, pkg)
	paySign, err := s.signer.Sign([]byte(message))
	if err != nil {
		return nil, err
	}

	return &InvocationPayload{
		TimeStamp: timestamp,
		NonceStr:  nonce,
		Package:   pkg,
		SignType:  SignTypeRSA,
		PaySign:   paySign,
	}, nil
}
