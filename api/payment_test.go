package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/merrydance/paygate/wechat"
	mockwechat "github.com/merrydance/paygate/wechat/mock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCreateJSAPIPaymentAPI(t *testing.T) {
	validBody := gin.H{
		"out_trade_no": "T20240101000001",
		"description":  "堂食订单",
		"amount":       "19.90",
		"openid":       "o_user_1",
	}

	payResult := &wechat.PayResult{
		PrepayID: "wx201410272009395522657a690389285100",
		Invocation: &wechat.InvocationPayload{
			TimeStamp: "1700000000",
			NonceStr:  "5K8264ILTKCH16CQ2502SI8ZNMTM67VS",
			Package:   "prepay_id=wx201410272009395522657a690389285100",
			SignType:  wechat.SignTypeRSA,
			PaySign:   "c2lnbmF0dXJl",
		},
	}

	testCases := []struct {
		name          string
		body          gin.H
		buildStubs    func(paymentClient *mockwechat.MockPaymentClientInterface)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name: "OK",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					Pay(gomock.Any(), gomock.Any()).
					Times(1).
					DoAndReturn(func(ctx context.Context, req wechat.OrderRequest) (*wechat.PayResult, error) {
						require.Equal(t, "T20240101000001", req.OutTradeNo)
						require.True(t, req.Amount.Equal(decimal.RequireFromString("19.9")))
						require.Equal(t, "o_user_1", req.OpenID)
						require.True(t, req.ExpireTime.IsZero())
						return payResult, nil
					})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)

				var response wechat.PayResult
				requireEnvelopeData(t, recorder, &response)
				require.Equal(t, payResult.PrepayID, response.PrepayID)
				require.Equal(t, "prepay_id="+payResult.PrepayID, response.Invocation.Package)
				require.Equal(t, "RSA", response.Invocation.SignType)
			},
		},
		{
			name: "InvalidOutTradeNo",
			body: gin.H{
				"out_trade_no": "T#1",
				"description":  "堂食订单",
				"amount":       "19.90",
				"openid":       "o_user_1",
			},
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().Pay(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name: "NonPositiveAmount",
			body: gin.H{
				"out_trade_no": "T20240101000001",
				"description":  "堂食订单",
				"amount":       "0",
				"openid":       "o_user_1",
			},
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().Pay(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name: "InvalidAmountFromCore",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					Pay(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, wechat.ErrInvalidAmount)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name: "PlatformRejected",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					Pay(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, &wechat.OrderError{
						OutTradeNo: "T20240101000001",
						Err:        &wechat.WechatPayError{StatusCode: http.StatusBadRequest, Code: "ORDERPAID", Message: "该订单已支付"},
					})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

				response := requireEnvelopeError(t, recorder, CodeUnprocessable, "ORDERPAID")
				require.Equal(t, "该订单已支付", response.Error)
			},
		},
		{
			name: "UntrustedResponse",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					Pay(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, &wechat.ResponseTrustError{Serial: "X", Err: wechat.ErrInvalidSignature})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadGateway, recorder.Code)
				require.NotContains(t, recorder.Body.String(), "signature")
				requireEnvelopeError(t, recorder, CodeBadGateway, "")
			},
		},
		{
			name: "UpstreamTimeout",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					Pay(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, &wechat.TransportError{Method: http.MethodPost, Path: "/v3/pay/transactions/jsapi", Timeout: true})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusGatewayTimeout, recorder.Code)
				requireEnvelopeError(t, recorder, CodeGatewayTimeout, "")
			},
		},
		{
			name: "SigningFailed",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					Pay(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, &wechat.SigningError{Err: context.Canceled})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, recorder.Code)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			paymentClient := mockwechat.NewMockPaymentClientInterface(ctrl)
			tc.buildStubs(paymentClient)

			server := newTestServer(t, paymentClient, mockwechat.NewMockNotificationParserInterface(ctrl), nil)
			recorder := httptest.NewRecorder()

			data, err := json.Marshal(tc.body)
			require.NoError(t, err)

			request, err := http.NewRequest(http.MethodPost, "/v1/payments/jsapi", bytes.NewReader(data))
			require.NoError(t, err)
			request.Header.Set("Content-Type", "application/json")

			server.router.ServeHTTP(recorder, request)
			tc.checkResponse(t, recorder)
		})
	}
}

func TestGetPaymentAPI(t *testing.T) {
	order := &wechat.OrderQueryResponse{
		OutTradeNo:    "T20240101000001",
		TransactionID: "4200000000000000",
		TradeState:    wechat.TradeStateSuccess,
	}
	order.Amount.Total = 1990

	testCases := []struct {
		name          string
		outTradeNo    string
		buildStubs    func(paymentClient *mockwechat.MockPaymentClientInterface)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name:       "OK",
			outTradeNo: order.OutTradeNo,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					QueryOrderByOutTradeNo(gomock.Any(), order.OutTradeNo).
					Times(1).
					Return(order, nil)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)

				var response wechat.OrderQueryResponse
				requireEnvelopeData(t, recorder, &response)
				require.Equal(t, wechat.TradeStateSuccess, response.TradeState)
				require.Equal(t, int64(1990), response.Amount.Total)
			},
		},
		{
			name:       "NotFound",
			outTradeNo: "T20240101000404",
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().
					QueryOrderByOutTradeNo(gomock.Any(), "T20240101000404").
					Times(1).
					Return(nil, &wechat.OrderError{
						OutTradeNo: "T20240101000404",
						Err:        &wechat.WechatPayError{StatusCode: http.StatusNotFound, Code: "ORDER_NOT_EXIST", Message: "订单不存在"},
					})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusNotFound, recorder.Code)
				response := requireEnvelopeError(t, recorder, CodeNotFound, "ORDER_NOT_EXIST")
				require.Equal(t, "订单不存在", response.Error)
			},
		},
		{
			name:       "InvalidOutTradeNo",
			outTradeNo: "abc",
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface) {
				paymentClient.EXPECT().QueryOrderByOutTradeNo(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			paymentClient := mockwechat.NewMockPaymentClientInterface(ctrl)
			tc.buildStubs(paymentClient)

			server := newTestServer(t, paymentClient, mockwechat.NewMockNotificationParserInterface(ctrl), nil)
			recorder := httptest.NewRecorder()

			request, err := http.NewRequest(http.MethodGet, "/v1/payments/"+tc.outTradeNo, nil)
			require.NoError(t, err)

			server.router.ServeHTTP(recorder, request)
			tc.checkResponse(t, recorder)
		})
	}
}

func TestClosePaymentAPI(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	paymentClient := mockwechat.NewMockPaymentClientInterface(ctrl)
	paymentClient.EXPECT().
		CloseOrder(gomock.Any(), "T20240101000001").
		Times(1).
		Return(nil)

	server := newTestServer(t, paymentClient, mockwechat.NewMockNotificationParserInterface(ctrl), nil)
	recorder := httptest.NewRecorder()

	request, err := http.NewRequest(http.MethodPost, "/v1/payments/T20240101000001/close", nil)
	require.NoError(t, err)

	server.router.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Empty(t, recorder.Body.Bytes())
}
