package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"flashvault/config"
	"flashvault/core/events"
	"flashvault/core/types"
	"flashvault/crypto"
	"flashvault/native/vault"
	"flashvault/observability/metrics"
	"flashvault/state"
	"flashvault/storage"
)

// Module seed for the pool's own account address.
var vaultSeed = []byte("vault")

// Node owns the vault engine and serializes every operation against it. All
// effects of one operation are applied before the next begins; a failure
// inside an operation leaves durable state untouched (the engine only writes
// after its checks pass).
type Node struct {
	mu sync.Mutex

	state     *state.Manager
	engine    *vault.Engine
	logger    *slog.Logger
	metrics   *metrics.VaultMetrics
	authority crypto.Address

	slotDuration time.Duration
	now          func() time.Time

	receivers map[string]vault.Receiver
}

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

// NewNode wires the engine, persistence, metrics, and genesis allocations.
func NewNode(db storage.Database, cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)

	moduleAddr := crypto.DeriveAddress(crypto.VaultPrefix, vaultSeed)
	engine := vault.NewEngine(moduleAddr)
	engine.SetState(manager)

	paused := pauseSet{}
	for _, module := range cfg.PausedModules {
		paused[module] = true
	}
	engine.SetPauses(paused)

	node := &Node{
		state:        manager,
		engine:       engine,
		logger:       logger,
		metrics:      metrics.Vault(),
		slotDuration: time.Duration(cfg.SlotDurationMillis) * time.Millisecond,
		now:          time.Now,
		receivers:    make(map[string]vault.Receiver),
	}
	engine.SetEmitter(logEmitter{logger: logger})

	if cfg.AuthorityAddress != "" {
		addr, err := crypto.DecodeAddress(cfg.AuthorityAddress)
		if err != nil {
			return nil, fmt.Errorf("node: invalid authority address: %w", err)
		}
		node.authority = addr
	} else {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("node: generate authority key: %w", err)
		}
		node.authority = key.PubKey().Address()
		logger.Info("generated ephemeral authority", "address", node.authority.String())
	}

	if err := node.applyGenesis(cfg.GenesisAlloc); err != nil {
		return nil, err
	}
	return node, nil
}

// logEmitter forwards engine events to structured logs.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(ev events.Event) {
	l.logger.Info("vault event", "type", ev.EventType())
}

// applyGenesis funds the configured accounts exactly once.
func (n *Node) applyGenesis(alloc map[string]string) error {
	applied, err := n.state.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	if len(alloc) == 0 {
		return n.state.MarkGenesisApplied()
	}

	addresses := make([]string, 0, len(alloc))
	for addr := range alloc {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	for _, encoded := range addresses {
		addr, err := crypto.DecodeAddress(encoded)
		if err != nil {
			return fmt.Errorf("node: genesis address %q: %w", encoded, err)
		}
		amount, ok := new(big.Int).SetString(alloc[encoded], 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("node: genesis amount %q for %s", alloc[encoded], encoded)
		}
		account := &types.Account{BalanceSOL: amount}
		account.EnsureDefaults()
		if err := n.state.PutAccount(addr, account); err != nil {
			return err
		}
	}
	return n.state.MarkGenesisApplied()
}

// Authority returns the admin address this node is configured with.
func (n *Node) Authority() crypto.Address { return n.authority }

// ModuleAddress returns the vault pool's account address.
func (n *Node) ModuleAddress() crypto.Address { return n.engine.ModuleAddress() }

// CurrentSlot derives the ledger tick from wall time.
func (n *Node) CurrentSlot() uint64 {
	return uint64(n.now().UnixMilli()) / uint64(n.slotDuration.Milliseconds())
}

// RegisterReceiver makes a flash loan receiver callable by name over RPC.
func (n *Node) RegisterReceiver(name string, r vault.Receiver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receivers[name] = r
}

func (n *Node) lookupReceiver(name string) (vault.Receiver, error) {
	r, ok := n.receivers[name]
	if !ok {
		return nil, fmt.Errorf("node: unknown flash loan receiver %q", name)
	}
	return r, nil
}

// run serializes one engine operation. All of the operation's writes are
// staged and committed as a single atomic batch, so an error at any point,
// storage faults included, leaves durable state untouched.
func (n *Node) run(op func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engine.SetCurrentSlot(n.CurrentSlot())
	n.state.BeginBatch()
	if err := op(); err != nil {
		n.state.DiscardBatch()
		return err
	}
	if err := n.state.CommitBatch(); err != nil {
		return err
	}
	if v, err := n.state.GetVault(); err == nil && v != nil {
		n.metrics.SetLedgerGauges(v.TotalBaseDeposited, v.TotalSyntheticSupply, v.AccruedYield, v.TreasuryOwed)
	}
	return nil
}

// Initialize creates the protocol configuration using the node authority.
func (n *Node) Initialize(params vault.InitParams) (*vault.Config, error) {
	var cfg *vault.Config
	err := n.run(func() error {
		var err error
		cfg, err = n.engine.Initialize(n.authority, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("vault initialized", "treasury", cfg.Treasury.String())
	return cfg, nil
}

// Stake deposits base asset for the staker and returns the minted synthetic.
func (n *Node) Stake(staker crypto.Address, amount *big.Int) (*big.Int, error) {
	var minted *big.Int
	err := n.run(func() error {
		var err error
		minted, err = n.engine.Stake(staker, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveStake()
	return minted, nil
}

// Unstake burns synthetic and returns the released base amount.
func (n *Node) Unstake(staker crypto.Address, synthetic *big.Int) (*big.Int, error) {
	var returned *big.Int
	err := n.run(func() error {
		var err error
		returned, err = n.engine.Unstake(staker, synthetic)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveUnstake()
	return returned, nil
}

// Harvest pays out accrued yield, capped at the requested amount.
func (n *Node) Harvest(caller crypto.Address, requested *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := n.run(func() error {
		var err error
		paid, err = n.engine.Harvest(caller, requested)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveHarvest()
	return paid, nil
}

// FlashLoan runs the full loan cycle through the named registered receiver.
func (n *Node) FlashLoan(borrower crypto.Address, amount *big.Int, receiverName string, data []byte) error {
	err := n.run(func() error {
		receiver, err := n.lookupReceiver(receiverName)
		if err != nil {
			return err
		}
		return n.engine.FlashLoan(borrower, amount, data, receiver)
	})
	if err != nil {
		n.metrics.ObserveFlashLoan("failed", nil)
		return err
	}
	n.metrics.ObserveFlashLoan("settled", amount)
	return nil
}

// SetPause toggles flash loan admission.
func (n *Node) SetPause(caller crypto.Address, paused bool) error {
	return n.run(func() error {
		return n.engine.SetPause(caller, paused)
	})
}

// UpdateFees replaces the base flash loan fee rate.
func (n *Node) UpdateFees(caller crypto.Address, feeRateBps uint64) error {
	return n.run(func() error {
		return n.engine.UpdateFees(caller, feeRateBps)
	})
}

// AddFeeTier appends an amount-tiered fee override.
func (n *Node) AddFeeTier(caller crypto.Address, threshold *big.Int, feeBps uint64) error {
	return n.run(func() error {
		return n.engine.AddFeeTier(caller, threshold, feeBps)
	})
}

// ClearFeeTiers removes every tier.
func (n *Node) ClearFeeTiers(caller crypto.Address) error {
	return n.run(func() error {
		return n.engine.ClearFeeTiers(caller)
	})
}

// WithdrawTreasuryFees drains accrued treasury fees to the treasury account.
func (n *Node) WithdrawTreasuryFees(caller crypto.Address, amount *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := n.run(func() error {
		var err error
		paid, err = n.engine.WithdrawTreasuryFees(caller, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// GetVault returns a copy of the current pool ledger.
func (n *Node) GetVault() (*vault.Vault, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, err := n.state.GetVault()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, vault.ErrNotInitialized
	}
	return v.Clone(), nil
}

// GetConfig returns a copy of the protocol configuration.
func (n *Node) GetConfig() (*vault.Config, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cfg, err := n.state.GetConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, vault.ErrNotInitialized
	}
	return cfg.Clone(), nil
}

// GetAccount returns a copy of the account record; missing accounts read as
// zero balances.
func (n *Node) GetAccount(addr crypto.Address) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
		acc.EnsureDefaults()
	}
	return acc.Clone(), nil
}
