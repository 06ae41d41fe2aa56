package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/merrydance/paygate/wechat"
	mockwechat "github.com/merrydance/paygate/wechat/mock"
	"github.com/merrydance/paygate/worker"
	mockwk "github.com/merrydance/paygate/worker/mock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCreateRefundAPI(t *testing.T) {
	validBody := gin.H{
		"out_trade_no":  "T20240101000001",
		"out_refund_no": "R20240101000001",
		"refund_amount": "5.00",
		"total_amount":  "19.90",
		"reason":        "用户取消",
	}
	platformBody := []byte(`{"refund_id":"50000000382019052709732678859","out_refund_no":"R20240101000001","status":"PROCESSING","amount":{"total":1990,"refund":500}}`)

	testCases := []struct {
		name          string
		body          gin.H
		buildStubs    func(paymentClient *mockwechat.MockPaymentClientInterface, distributor *mockwk.MockTaskDistributor)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name: "OK",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface, distributor *mockwk.MockTaskDistributor) {
				paymentClient.EXPECT().
					Refund(gomock.Any(), gomock.Any()).
					Times(1).
					DoAndReturn(func(ctx context.Context, req wechat.RefundRequest) ([]byte, error) {
						require.Equal(t, "R20240101000001", req.OutRefundNo)
						require.True(t, req.RefundAmount.Equal(decimal.RequireFromString("5")))
						require.True(t, req.TotalAmount.Equal(decimal.RequireFromString("19.9")))
						return platformBody, nil
					})
				distributor.EXPECT().DistributeTaskProcessRefund(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)

				var response wechat.RefundResponse
				requireEnvelopeData(t, recorder, &response)
				require.Equal(t, wechat.RefundStatusProcessing, response.Status)
				require.Equal(t, int64(500), response.Amount.Refund)
			},
		},
		{
			name: "TransportErrorQueued",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface, distributor *mockwk.MockTaskDistributor) {
				paymentClient.EXPECT().
					Refund(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, &wechat.TransportError{Method: http.MethodPost, Path: "/v3/refund/domestic/refunds", StatusCode: http.StatusBadGateway})
				distributor.EXPECT().
					DistributeTaskProcessRefund(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					DoAndReturn(func(ctx context.Context, payload *worker.PayloadProcessRefund, opts ...asynq.Option) error {
						require.Equal(t, "T20240101000001", payload.OutTradeNo)
						require.Equal(t, "R20240101000001", payload.OutRefundNo)
						require.True(t, payload.RefundAmount.Equal(decimal.RequireFromString("5")))
						require.Len(t, opts, 2)
						return nil
					})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusAccepted, recorder.Code)

				var response refundQueuedResponse
				requireEnvelopeData(t, recorder, &response)
				require.Equal(t, "QUEUED", response.Status)
			},
		},
		{
			name: "EnqueueFailed",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface, distributor *mockwk.MockTaskDistributor) {
				paymentClient.EXPECT().
					Refund(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, &wechat.TransportError{Method: http.MethodPost, Path: "/v3/refund/domestic/refunds", Timeout: true})
				distributor.EXPECT().
					DistributeTaskProcessRefund(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(context.DeadlineExceeded)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, recorder.Code)
			},
		},
		{
			name: "RefundExceedsTotal",
			body: gin.H{
				"out_trade_no":  "T20240101000001",
				"out_refund_no": "R20240101000001",
				"refund_amount": "20.00",
				"total_amount":  "19.90",
			},
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface, distributor *mockwk.MockTaskDistributor) {
				paymentClient.EXPECT().
					Refund(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, wechat.ErrInvalidAmount)
				distributor.EXPECT().DistributeTaskProcessRefund(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
				requireEnvelopeError(t, recorder, CodeBadRequest, "")
			},
		},
		{
			name: "PlatformRejected",
			body: validBody,
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface, distributor *mockwk.MockTaskDistributor) {
				paymentClient.EXPECT().
					Refund(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, &wechat.RefundError{
						OutRefundNo: "R20240101000001",
						Err:         &wechat.WechatPayError{StatusCode: http.StatusForbidden, Code: "NOT_ENOUGH", Message: "基本账户余额不足"},
					})
				distributor.EXPECT().DistributeTaskProcessRefund(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

				requireEnvelopeError(t, recorder, CodeUnprocessable, "NOT_ENOUGH")
			},
		},
		{
			name: "MissingRefundNo",
			body: gin.H{
				"out_trade_no":  "T20240101000001",
				"refund_amount": "5.00",
				"total_amount":  "19.90",
			},
			buildStubs: func(paymentClient *mockwechat.MockPaymentClientInterface, distributor *mockwk.MockTaskDistributor) {
				paymentClient.EXPECT().Refund(gomock.Any(), gomock.Any()).Times(0)
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
			distributor := mockwk.NewMockTaskDistributor(ctrl)
			tc.buildStubs(paymentClient, distributor)

			server := newTestServer(t, paymentClient, mockwechat.NewMockNotificationParserInterface(ctrl), distributor)
			recorder := httptest.NewRecorder()

			data, err := json.Marshal(tc.body)
			require.NoError(t, err)

			request, err := http.NewRequest(http.MethodPost, "/v1/refunds", bytes.NewReader(data))
			require.NoError(t, err)
			request.Header.Set("Content-Type", "application/json")

			server.router.ServeHTTP(recorder, request)
			tc.checkResponse(t, recorder)
		})
	}
}

func TestGetRefundAPI(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	refund := &wechat.RefundResponse{OutRefundNo: "R20240101000001", Status: wechat.RefundStatusSuccess}

	paymentClient := mockwechat.NewMockPaymentClientInterface(ctrl)
	paymentClient.EXPECT().
		QueryRefund(gomock.Any(), "R20240101000001").
		Times(1).
		Return(refund, nil)

	server := newTestServer(t, paymentClient, mockwechat.NewMockNotificationParserInterface(ctrl), nil)
	recorder := httptest.NewRecorder()

	request, err := http.NewRequest(http.MethodGet, "/v1/refunds/R20240101000001", nil)
	require.NoError(t, err)

	server.router.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response wechat.RefundResponse
	requireEnvelopeData(t, recorder, &response)
	require.Equal(t, wechat.RefundStatusSuccess, response.Status)
}
