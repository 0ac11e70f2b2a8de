package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcollins22/rugchekr/internal/config"
)

func TestFromConfig_ProviderOrder(t *testing.T) {
	cfg := &config.Config{
		EtherscanBaseURL:   "http://127.0.0.1:1/v2/api",
		ChainID:            1,
		EtherscanRPS:       5,
		CoinGeckoBaseURL:   "http://127.0.0.1:1",
		CoinGeckoPlatform:  "ethereum",
		DexScreenerBaseURL: "http://127.0.0.1:1",
		GoPlusBaseURL:      "http://127.0.0.1:1",
		BitqueryURL:        "http://127.0.0.1:1",
		ProviderTimeout:    10 * time.Second,
		HoneypotTimeout:    15 * time.Second,
	}

	reg, err := FromConfig(context.Background(), cfg, Deps{}, nil)
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, []string{
		NameSourceCode,
		NameSupply,
		NameHolderCount,
		NameTokenMetadata,
		NameMarketData,
		NameHoneypot,
		NameCreationTime,
		NameCreatorBal,
		NameBurnedBal,
		NameHolderList,
	}, reg.Names())

	for _, p := range reg.Providers() {
		want := cfg.ProviderTimeout
		if p.Name() == NameHoneypot {
			want = cfg.HoneypotTimeout
		}
		assert.Equal(t, want, p.Timeout(), p.Name())
	}
}

func TestNewRegistry(t *testing.T) {
	p := Func("x", time.Second, func(context.Context, string) (Contribution, error) { return SupplyInfo{Raw: "1"}, nil })
	reg := NewRegistry(p)
	assert.Equal(t, []string{"x"}, reg.Names())
	assert.Len(t, reg.Providers(), 1)
	reg.Close()
}
