package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryKnowsAllBuiltinCodes(t *testing.T) {
	r := NewRegistry()

	expected := []string{
		CodeCash, CodeWave, CodeOrangeMoney, CodeMTNMoMo,
		CodePaystack, CodeFlutterwave, CodeCinetPay,
		CodeDigitalPayeOM, CodeDigitalPayeMTN, CodeDigitalPayeMoov,
	}
	for _, code := range expected {
		assert.True(t, r.Known(code), "code %s should be registered", code)
	}
	assert.False(t, r.Known("paypal"))
	assert.Len(t, r.Codes(), len(expected))
}

func TestRegistryBuildDecodesConfig(t *testing.T) {
	r := NewRegistry()

	p, err := r.Build(CodeWave, `{"api_key":"wave_sk","webhook_secret":"whsec"}`)
	require.NoError(t, err)
	assert.Equal(t, CodeWave, p.Code())

	_, err = r.Build(CodeWave, `{broken`)
	require.Error(t, err)

	_, err = r.Build("paypal", "")
	require.Error(t, err)
}

func TestRegistryDigitalPayeOperatorFromCode(t *testing.T) {
	r := NewRegistry()

	for code, operator := range map[string]string{
		CodeDigitalPayeOM:   "ORANGE",
		CodeDigitalPayeMTN:  "MTN",
		CodeDigitalPayeMoov: "MOOV",
	} {
		p, err := r.Build(code, "")
		require.NoError(t, err)
		assert.Equal(t, code, p.Code())

		dp, ok := p.(*DigitalPayeProvider)
		require.True(t, ok)
		assert.Equal(t, operator, dp.operator)
	}
}

func TestCashProviderSucceedsWithoutNetwork(t *testing.T) {
	r := NewRegistry()
	p, err := r.Build(CodeCash, "")
	require.NoError(t, err)

	result := p.Initiate(context.Background(), InitiateRequest{Amount: 15000, Currency: "XOF"})
	assert.Equal(t, StatusSuccess, result.Status)
	assert.NotEmpty(t, result.ProviderReference)
	assert.Empty(t, result.RedirectURL)

	status := p.CheckStatus(context.Background(), result.ProviderReference)
	assert.Equal(t, StatusSuccess, status.Status)

	refund := p.ProcessRefund(context.Background(), result.ProviderReference, 5000)
	assert.True(t, refund.Success)

	// le cash ne recoit pas de webhooks
	_, err = p.ParseWebhook([]byte(`{}`))
	require.Error(t, err)
}

func TestUnsupportedRefundProvidersPointToManualProcess(t *testing.T) {
	for _, p := range []Provider{
		NewOrangeMoneyProvider(Config{}),
		NewMTNMoMoProvider(Config{}),
		NewCinetPayProvider(Config{}),
	} {
		result := p.ProcessRefund(context.Background(), "ref", 0)
		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "manually")
	}
}
