package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"flashvault/core/types"
	"flashvault/crypto"
	"flashvault/native/vault"
	"flashvault/storage"
)

func testAddress(t *testing.T, suffix byte) crypto.Address {
	t.Helper()
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.VaultPrefix, raw)
}

func TestConfigRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	cfg, err := m.GetConfig()
	require.NoError(t, err)
	require.Nil(t, cfg, "missing config must read as nil")

	want := &vault.Config{
		Authority:          testAddress(t, 0x01),
		Treasury:           testAddress(t, 0x02),
		FeeRateBps:         5,
		TreasurySplitBps:   1000,
		MaxFlashLoanAmount: big.NewInt(10_000_000_000),
		CooldownSlots:      100,
		MinStake:           big.NewInt(1),
		Paused:             true,
		FeeTiers: []vault.FeeTier{
			{Threshold: big.NewInt(1_000_000), FeeBps: 10},
			{Threshold: big.NewInt(5_000_000), FeeBps: 25},
		},
	}
	require.NoError(t, m.PutConfig(want))

	got, err := m.GetConfig()
	require.NoError(t, err)
	require.True(t, got.Authority.Equal(want.Authority))
	require.True(t, got.Treasury.Equal(want.Treasury))
	require.Equal(t, want.FeeRateBps, got.FeeRateBps)
	require.Equal(t, want.TreasurySplitBps, got.TreasurySplitBps)
	require.Zero(t, got.MaxFlashLoanAmount.Cmp(want.MaxFlashLoanAmount))
	require.Equal(t, want.CooldownSlots, got.CooldownSlots)
	require.Zero(t, got.MinStake.Cmp(want.MinStake))
	require.True(t, got.Paused)
	require.Len(t, got.FeeTiers, 2)
	require.Zero(t, got.FeeTiers[0].Threshold.Cmp(want.FeeTiers[0].Threshold))
	require.Equal(t, uint64(25), got.FeeTiers[1].FeeBps)
}

func TestVaultRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	v, err := m.GetVault()
	require.NoError(t, err)
	require.Nil(t, v, "missing ledger must read as nil")

	want := &vault.Vault{
		TotalBaseDeposited:   big.NewInt(100_025_000),
		TotalSyntheticSupply: big.NewInt(100_000_000),
		AccruedYield:         big.NewInt(22_500),
		TreasuryOwed:         big.NewInt(2_500),
	}
	require.NoError(t, m.PutVault(want))

	got, err := m.GetVault()
	require.NoError(t, err)
	require.Zero(t, got.TotalBaseDeposited.Cmp(want.TotalBaseDeposited))
	require.Zero(t, got.TotalSyntheticSupply.Cmp(want.TotalSyntheticSupply))
	require.Zero(t, got.AccruedYield.Cmp(want.AccruedYield))
	require.Zero(t, got.TreasuryOwed.Cmp(want.TreasuryOwed))
}

func TestLoanRecordRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	borrower := testAddress(t, 0x03)

	record, err := m.GetLoanRecord(borrower)
	require.NoError(t, err)
	require.Nil(t, record, "missing record must read as nil")

	want := &vault.FlashLoanRecord{
		Borrower:          borrower,
		LastBorrowSlot:    5_000,
		OutstandingAmount: big.NewInt(0),
	}
	require.NoError(t, m.PutLoanRecord(want))

	got, err := m.GetLoanRecord(borrower)
	require.NoError(t, err)
	require.True(t, got.Borrower.Equal(borrower))
	require.Equal(t, uint64(5_000), got.LastBorrowSlot)
	require.Zero(t, got.OutstandingAmount.Sign())

	// Records are keyed per borrower.
	other, err := m.GetLoanRecord(testAddress(t, 0x04))
	require.NoError(t, err)
	require.Nil(t, other)
}

func TestAccountRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := testAddress(t, 0x05)

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, acc, "missing account must read as nil")

	want := &types.Account{
		BalanceSOL:  big.NewInt(1_000_000),
		BalanceFSOL: big.NewInt(250_000),
	}
	require.NoError(t, m.PutAccount(addr, want))

	got, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, got.BalanceSOL.Cmp(want.BalanceSOL))
	require.Zero(t, got.BalanceFSOL.Cmp(want.BalanceFSOL))
}

func TestAccountNilBalancesNormalised(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := testAddress(t, 0x06)

	require.NoError(t, m.PutAccount(addr, &types.Account{}))

	got, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, got.BalanceSOL)
	require.NotNil(t, got.BalanceFSOL)
	require.Zero(t, got.BalanceSOL.Sign())
}

// writeFailDB fails the atomic flush while letting direct puts through.
type writeFailDB struct {
	*storage.MemDB
}

func (db writeFailDB) Write([]storage.KeyValue) error {
	return errors.New("disk full")
}

func TestBatchStagesWritesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	m.BeginBatch()
	require.NoError(t, m.PutVault(&vault.Vault{TotalBaseDeposited: big.NewInt(42)}))
	require.NoError(t, m.PutAccount(testAddress(t, 0x07), &types.Account{BalanceSOL: big.NewInt(7)}))

	// Staged writes are visible through the manager but not yet durable.
	v, err := m.GetVault()
	require.NoError(t, err)
	require.Zero(t, v.TotalBaseDeposited.Cmp(big.NewInt(42)))
	_, err = db.Get(ledgerKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, m.CommitBatch())
	_, err = db.Get(ledgerKey)
	require.NoError(t, err)
	acc, err := m.GetAccount(testAddress(t, 0x07))
	require.NoError(t, err)
	require.Zero(t, acc.BalanceSOL.Cmp(big.NewInt(7)))
}

func TestDiscardBatchDropsStagedWrites(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	m.BeginBatch()
	require.NoError(t, m.PutVault(&vault.Vault{TotalBaseDeposited: big.NewInt(42)}))
	m.DiscardBatch()

	v, err := m.GetVault()
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestCommitBatchFaultLeavesNothingBehind(t *testing.T) {
	db := writeFailDB{MemDB: storage.NewMemDB()}
	m := NewManager(db)

	m.BeginBatch()
	require.NoError(t, m.PutVault(&vault.Vault{TotalBaseDeposited: big.NewInt(42)}))
	require.Error(t, m.CommitBatch())

	// The failed flush must not leave a partial ledger and the manager must be
	// back in write-through mode.
	v, err := m.GetVault()
	require.NoError(t, err)
	require.Nil(t, v)
	_, err = db.MemDB.Get(ledgerKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGenesisFlag(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	applied, err := m.GenesisApplied()
	require.NoError(t, err)
	require.False(t, applied)

	require.NoError(t, m.MarkGenesisApplied())

	applied, err = m.GenesisApplied()
	require.NoError(t, err)
	require.True(t, applied)
}
