package yield

import (
	"context"
	"math"
	"strings"
	"testing"

	"estate-backend/internal/application/ledger"
	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/database"
	"estate-backend/internal/pkg/assetrecord"
	"estate-backend/internal/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testPayment = "USDC"
	testIssuer  = "issuer"
	testOwner   = "acct:owner"
)

var testHash = strings.Repeat("ab", 32)

func setupYieldTest(t *testing.T) (*Service, *ledger.GormLedger) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	l := &ledger.GormLedger{DB: db}
	require.NoError(t, l.CreateToken(context.Background(), testPayment, testIssuer))

	return &Service{DB: db, Ledger: l, PaymentToken: testPayment}, l
}

func fund(t *testing.T, l *ledger.GormLedger, holder string, amount uint64) {
	t.Helper()
	require.NoError(t, l.Mint(context.Background(), testPayment, holder, amount, testIssuer))
}

func balance(t *testing.T, l *ledger.GormLedger, holder, token string) uint64 {
	t.Helper()
	b, err := l.BalanceOf(context.Background(), holder, token)
	require.NoError(t, err)
	return b
}

func createAsset(t *testing.T, svc *Service, total, price uint64) *domain.Asset {
	t.Helper()
	a, err := svc.CreateProperty(context.Background(), CreateInput{
		Owner:          testOwner,
		MetadataHash:   testHash,
		MetadataURI:    "ipfs://property",
		AnnualReturnBP: 750,
		TotalTokens:    total,
		PricePerToken:  price,
	})
	require.NoError(t, err)
	return a
}

// buy funds holder with exactly the purchase cost and buys amount shares.
func buy(t *testing.T, svc *Service, l *ledger.GormLedger, a *domain.Asset, holder string, amount uint64) {
	t.Helper()
	fund(t, l, holder, uint64(a.PricePerToken)*amount)
	_, err := svc.BuyTokens(context.Background(), a.AssetID, holder, amount)
	require.NoError(t, err)
}

func deposit(t *testing.T, svc *Service, l *ledger.GormLedger, a *domain.Asset, amount uint64) {
	t.Helper()
	fund(t, l, "acct:manager", amount)
	_, err := svc.DepositYield(context.Background(), a.AssetID, "acct:manager", amount)
	require.NoError(t, err)
}

func TestCreateProperty(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()

	a := createAsset(t, svc, 1000, 5)

	got, err := svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.Equal(t, domain.Units(1000), got.TotalTokens)
	assert.Equal(t, domain.Units(1000), got.TokensLeft)
	assert.True(t, got.YieldAccumulator.IsZero())
	assert.Equal(t, domain.AssetAuthority(a.AssetID), got.Authority)
	assert.Equal(t, uint64(1000), balance(t, l, got.HoldingAccount(), got.ShareToken))

	events, err := svc.Events(ctx, a.AssetID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCreated, events[0].EventType)
}

func TestCreateProperty_Validation(t *testing.T) {
	svc, _ := setupYieldTest(t)
	ctx := context.Background()

	_, err := svc.CreateProperty(ctx, CreateInput{Owner: testOwner, MetadataHash: testHash, TotalTokens: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateProperty(ctx, CreateInput{Owner: testOwner, MetadataHash: "abcd", TotalTokens: 10})
	assert.ErrorIs(t, err, ErrInvalidMetadataHash)

	assets, err := svc.ListAssets(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestBuyTokens_SellsOutThenRejects(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 10, 500)

	fund(t, l, "acct:buyer", 5500)
	res, err := svc.BuyTokens(ctx, a.AssetID, "acct:buyer", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), res.Cost)
	assert.Equal(t, uint64(0), res.TokensLeft)
	assert.Equal(t, uint64(5000), balance(t, l, testOwner, testPayment))
	assert.Equal(t, uint64(500), balance(t, l, "acct:buyer", testPayment))
	assert.Equal(t, uint64(10), balance(t, l, "acct:buyer", a.ShareToken))

	_, err = svc.BuyTokens(ctx, a.AssetID, "acct:buyer", 1)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Equal(t, uint64(500), balance(t, l, "acct:buyer", testPayment))
}

func TestBuyTokens_TokensLeftTracksSales(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 10, 3)

	buy(t, svc, l, a, "acct:a", 3)
	buy(t, svc, l, a, "acct:b", 4)
	buy(t, svc, l, a, "acct:a", 2)

	got, err := svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.Equal(t, domain.Units(1), got.TokensLeft)
	assert.Equal(t, uint64(got.TokensLeft), balance(t, l, got.HoldingAccount(), got.ShareToken))
	assert.Equal(t, uint64(5), balance(t, l, "acct:a", got.ShareToken))
	assert.Equal(t, uint64(4), balance(t, l, "acct:b", got.ShareToken))

	fund(t, l, "acct:c", 6)
	_, err = svc.BuyTokens(ctx, a.AssetID, "acct:c", 2)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
}

func TestBuyTokens_InsufficientFundsRollsBack(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 10, 100)

	fund(t, l, "acct:buyer", 150)
	_, err := svc.BuyTokens(ctx, a.AssetID, "acct:buyer", 2)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.Equal(t, domain.Units(10), got.TokensLeft)
	assert.Equal(t, uint64(150), balance(t, l, "acct:buyer", testPayment))
	assert.Equal(t, uint64(0), balance(t, l, "acct:buyer", a.ShareToken))
	assert.Equal(t, uint64(0), balance(t, l, testOwner, testPayment))

	events, err := svc.Events(ctx, a.AssetID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestBuyTokens_CostOverflow(t *testing.T) {
	tests := []struct {
		name         string
		total, price uint64
		amount       uint64
	}{
		{"price above int64", 4, 1 << 63, 2},
		{"product of small operands", 1 << 30, 1 << 40, 1 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setupYieldTest(t)
			a := createAsset(t, svc, tt.total, tt.price)

			_, err := svc.BuyTokens(context.Background(), a.AssetID, "acct:buyer", tt.amount)
			assert.ErrorIs(t, err, ErrArithmeticOverflow)

			got, err := svc.GetAsset(context.Background(), a.AssetID)
			require.NoError(t, err)
			assert.Equal(t, domain.Units(tt.total), got.TokensLeft)
		})
	}
}

func TestCreateAndBuy_FullWidthCounters(t *testing.T) {
	ctx := context.Background()
	svc, l := setupYieldTest(t)

	a := createAsset(t, svc, math.MaxUint64, 1<<63)
	got, err := svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.Equal(t, domain.Units(math.MaxUint64), got.TotalTokens)
	assert.Equal(t, domain.Units(1<<63), got.PricePerToken)
	assert.Equal(t, uint64(math.MaxUint64), balance(t, l, a.HoldingAccount(), a.ShareToken))

	buy(t, svc, l, a, "acct:buyer", 1)
	assert.Equal(t, uint64(1<<63), balance(t, l, testOwner, testPayment))
	assert.Equal(t, uint64(1), balance(t, l, "acct:buyer", a.ShareToken))

	got, err = svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.Equal(t, domain.Units(math.MaxUint64-1), got.TokensLeft)
	assert.Equal(t, uint64(got.TokensLeft), balance(t, l, a.HoldingAccount(), a.ShareToken))

	raw, err := svc.Record(ctx, a.AssetID)
	require.NoError(t, err)
	rec, err := assetrecord.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), rec.TotalTokens)
	assert.Equal(t, uint64(1<<63), rec.PricePerToken)
}

func TestBuyTokens_UnknownAsset(t *testing.T) {
	svc, _ := setupYieldTest(t)
	_, err := svc.BuyTokens(context.Background(), uuid.New(), "acct:buyer", 1)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestDepositYield_ZeroAmount(t *testing.T) {
	svc, _ := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)

	_, err := svc.DepositYield(ctx, a.AssetID, "acct:manager", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	got, err := svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.True(t, got.YieldAccumulator.IsZero())
}

func TestDepositYield_InsufficientFundsKeepsAccumulator(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)

	fund(t, l, "acct:manager", 10)
	_, err := svc.DepositYield(ctx, a.AssetID, "acct:manager", 11)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.True(t, got.YieldAccumulator.IsZero())
	assert.Equal(t, uint64(0), balance(t, l, got.YieldPoolAccount(), testPayment))
}

func TestDepositYield_ZeroSupplyFault(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	broken := domain.Asset{
		Owner:        testOwner,
		MetadataHash: testHash,
		PaymentToken: testPayment,
	}
	require.NoError(t, svc.DB.Create(&broken).Error)

	fund(t, l, "acct:manager", 10)
	_, err := svc.DepositYield(ctx, broken.AssetID, "acct:manager", 10)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	assert.Equal(t, uint64(10), balance(t, l, "acct:manager", testPayment))
}

func TestDepositAndClaim(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)
	buy(t, svc, l, a, "acct:holder", 100)

	fund(t, l, "acct:manager", 1_000_000)
	res, err := svc.DepositYield(ctx, a.AssetID, "acct:manager", 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000", res.YieldAccumulator.String())
	assert.Equal(t, uint64(1_000_000), balance(t, l, a.YieldPoolAccount(), testPayment))

	pending, err := svc.PendingYield(ctx, a.AssetID, "acct:holder")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), pending)

	paid, err := svc.ClaimYield(ctx, a.AssetID, "acct:holder")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), paid)
	assert.Equal(t, uint64(100_000), balance(t, l, "acct:holder", testPayment))
	assert.Equal(t, uint64(900_000), balance(t, l, a.YieldPoolAccount(), testPayment))

	_, err = svc.ClaimYield(ctx, a.AssetID, "acct:holder")
	assert.ErrorIs(t, err, ErrNoYield)

	pending, err = svc.PendingYield(ctx, a.AssetID, "acct:holder")
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestClaimYield_ProportionalAndSumBounded(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)
	buy(t, svc, l, a, "acct:a", 300)
	buy(t, svc, l, a, "acct:b", 700)

	deposit(t, svc, l, a, 1_000_000)

	pa, err := svc.ClaimYield(ctx, a.AssetID, "acct:a")
	require.NoError(t, err)
	pb, err := svc.ClaimYield(ctx, a.AssetID, "acct:b")
	require.NoError(t, err)

	assert.Equal(t, uint64(300_000), pa)
	assert.Equal(t, uint64(700_000), pb)
	assert.Equal(t, uint64(0), balance(t, l, a.YieldPoolAccount(), testPayment))
}

func TestClaimYield_RoundingDust(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 3, 1)
	holders := []string{"acct:a", "acct:b", "acct:c"}
	for _, h := range holders {
		buy(t, svc, l, a, h, 1)
	}

	deposit(t, svc, l, a, 10)

	var total uint64
	for _, h := range holders {
		paid, err := svc.ClaimYield(ctx, a.AssetID, h)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), paid)
		total += paid
	}
	assert.LessOrEqual(t, total, uint64(10))
	assert.GreaterOrEqual(t, total, uint64(10-2))
	assert.Equal(t, uint64(1), balance(t, l, a.YieldPoolAccount(), testPayment))
}

func TestClaimYield_OnlyNewDepositsAfterClaim(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)
	buy(t, svc, l, a, "acct:holder", 100)

	deposit(t, svc, l, a, 1_000_000)
	paid, err := svc.ClaimYield(ctx, a.AssetID, "acct:holder")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), paid)

	deposit(t, svc, l, a, 500_000)
	paid, err = svc.ClaimYield(ctx, a.AssetID, "acct:holder")
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), paid)
}

func TestClaimYield_UnsoldSharesStayInPool(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)
	buy(t, svc, l, a, "acct:holder", 250)

	deposit(t, svc, l, a, 1_000_000)
	paid, err := svc.ClaimYield(ctx, a.AssetID, "acct:holder")
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000), paid)
	assert.Equal(t, uint64(750_000), balance(t, l, a.YieldPoolAccount(), testPayment))
}

func TestClaimYield_NoSharesCreatesNoSnapshot(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)
	deposit(t, svc, l, a, 1_000_000)

	_, err := svc.ClaimYield(ctx, a.AssetID, "acct:stranger")
	assert.ErrorIs(t, err, ErrNoYield)

	var n int64
	require.NoError(t, svc.DB.Model(&domain.YieldSnapshot{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestClaimYield_SnapshotLimit(t *testing.T) {
	svc, l := setupYieldTest(t)
	svc.MaxSnapshots = 1
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)
	buy(t, svc, l, a, "acct:a", 100)
	buy(t, svc, l, a, "acct:b", 100)
	deposit(t, svc, l, a, 1_000_000)

	_, err := svc.ClaimYield(ctx, a.AssetID, "acct:a")
	require.NoError(t, err)

	_, err = svc.ClaimYield(ctx, a.AssetID, "acct:b")
	assert.ErrorIs(t, err, ErrSnapshotLimit)
	assert.Equal(t, uint64(0), balance(t, l, "acct:b", testPayment))

	deposit(t, svc, l, a, 1_000_000)
	paid, err := svc.ClaimYield(ctx, a.AssetID, "acct:a")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), paid)
}

func TestClaimYield_SnapshotAheadOfAccumulator(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)
	buy(t, svc, l, a, "acct:holder", 100)

	require.NoError(t, svc.DB.Create(&domain.YieldSnapshot{
		AssetID:         a.AssetID,
		Holder:          "acct:holder",
		LastAccumulator: fixedpoint.FromRaw(5),
	}).Error)

	_, err := svc.ClaimYield(ctx, a.AssetID, "acct:holder")
	assert.ErrorIs(t, err, ErrSnapshotConsistency)
}

func TestMintCrosschain(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 1000, 1)

	err := svc.MintCrosschain(ctx, a.AssetID, "acct:intruder", "acct:x", 10)
	assert.ErrorIs(t, err, ErrNotOwner)

	err = svc.MintCrosschain(ctx, a.AssetID, testOwner, "acct:x", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, svc.MintCrosschain(ctx, a.AssetID, testOwner, "acct:x", 10))
	assert.Equal(t, uint64(10), balance(t, l, "acct:x", a.BridgeToken))
	assert.Equal(t, uint64(0), balance(t, l, "acct:x", a.ShareToken))

	var share domain.LedgerToken
	require.NoError(t, svc.DB.Where("token_id = ?", a.ShareToken).First(&share).Error)
	assert.Equal(t, domain.Units(1000), share.Supply)

	got, err := svc.GetAsset(ctx, a.AssetID)
	require.NoError(t, err)
	assert.True(t, got.YieldAccumulator.IsZero())
	assert.Equal(t, domain.Units(1000), got.TokensLeft)
}

func TestEvents_Order(t *testing.T) {
	svc, l := setupYieldTest(t)
	ctx := context.Background()
	a := createAsset(t, svc, 10, 1)
	buy(t, svc, l, a, "acct:holder", 5)
	deposit(t, svc, l, a, 100)
	_, err := svc.ClaimYield(ctx, a.AssetID, "acct:holder")
	require.NoError(t, err)

	events, err := svc.Events(ctx, a.AssetID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []string{
		domain.EventCreated, domain.EventPurchased, domain.EventYieldDeposited, domain.EventYieldClaimed,
	}, types)

	_, err = svc.Events(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestService_LedgerBoundToTransaction(t *testing.T) {
	svc, l := setupYieldTest(t)
	var bound []*gorm.DB
	svc.Ledger = binderFunc(func(tx *gorm.DB) ledger.Ledger {
		bound = append(bound, tx)
		return l.Bind(tx)
	})

	createAsset(t, svc, 10, 1)
	require.NotEmpty(t, bound)
	for _, tx := range bound {
		assert.NotSame(t, svc.DB, tx)
	}
}

type binderFunc func(tx *gorm.DB) ledger.Ledger

func (f binderFunc) Bind(tx *gorm.DB) ledger.Ledger { return f(tx) }
