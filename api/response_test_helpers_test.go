package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireEnvelopeData 断言成功应答 code=0 并解出 data
func requireEnvelopeData(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()

	var envelope APIResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Equal(t, CodeOK, envelope.Code)
	require.Equal(t, "ok", envelope.Message)
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}

// requireEnvelopeError 断言失败应答的 code 与平台错误码，返回 data 中的 ErrorResponse
// 5xx 不带 data，返回零值
func requireEnvelopeError(t *testing.T, recorder *httptest.ResponseRecorder, code int, platformCode string) ErrorResponse {
	t.Helper()

	var envelope APIResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Equal(t, code, envelope.Code)
	require.NotEmpty(t, envelope.Message)
	require.Equal(t, platformCode, envelope.PlatformCode)

	var errBody ErrorResponse
	if len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, &errBody))
		require.Equal(t, envelope.Message, errBody.Error)
		require.Equal(t, platformCode, errBody.PlatformCode)
	}
	return errBody
}
