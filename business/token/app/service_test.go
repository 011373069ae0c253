package app_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/business/token/app"
	"github.com/fd1az/pair-arbitrage/business/token/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/logger"
)

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	trader   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func newService() *app.Service {
	return app.NewService(domain.NewLedger(), asset.DefaultRegistry(), logger.NewNop())
}

func TestService_MintTransferHoldings(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.Mint(ctx, deployer, asset.MustParse(asset.TokenA, "1000")))
	require.NoError(t, svc.Transfer(ctx, deployer, trader, asset.MustParse(asset.TokenA, "2.5")))

	assert.Equal(t, "997.5", svc.Balance(deployer, asset.TokenA).ToDecimal().String())
	assert.Equal(t, "2.5", svc.Balance(trader, asset.TokenA).ToDecimal().String())

	holdings := svc.Holdings(
		app.Account{Label: "deployer", Address: deployer},
		app.Account{Label: "trader", Address: trader},
	)
	require.Len(t, holdings, 2)
	assert.Equal(t, "trader", holdings[1].Label)
	require.Len(t, holdings[1].Balances, 2)
	assert.Equal(t, "TKA", holdings[1].Balances[0].Asset().Symbol())
	assert.True(t, holdings[1].Balances[1].IsZero())
}

func TestService_UnknownAsset(t *testing.T) {
	svc := newService()
	foreign := asset.NewAsset(
		asset.NewAssetID(1, common.HexToAddress("0x1111111111111111111111111111111111111111")),
		"FOR", "Foreign", 18,
	)

	err := svc.Mint(context.Background(), deployer, asset.MustParse(foreign, "1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownAsset))
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.Approve(ctx, trader, deployer, asset.MustParse(asset.TokenB, "7")))
	assert.Equal(t, asset.MustParse(asset.TokenB, "7").Raw(),
		svc.Ledger().Allowance(asset.IDTokenB, trader, deployer))
}
