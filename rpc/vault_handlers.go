package rpc

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"flashvault/crypto"
	"flashvault/native/vault"
)

type initializeParams struct {
	FeeRateBps         uint64 `json:"feeRateBps"`
	TreasurySplitBps   uint64 `json:"treasurySplitBps"`
	Treasury           string `json:"treasury"`
	MaxFlashLoanAmount string `json:"maxFlashLoanAmount"`
	CooldownSlots      uint64 `json:"cooldownSlots"`
	MinStake           string `json:"minStake"`
}

type amountParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type flashLoanParams struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
	Data     string `json:"data,omitempty"`
}

type pauseParams struct {
	Authority string `json:"authority"`
	Paused    bool   `json:"paused"`
}

type feeParams struct {
	Authority  string `json:"authority"`
	FeeRateBps uint64 `json:"feeRateBps"`
}

type feeTierParams struct {
	Authority string `json:"authority"`
	Threshold string `json:"threshold"`
	FeeBps    uint64 `json:"feeBps"`
}

type authorityParams struct {
	Authority string `json:"authority"`
}

type addressParams struct {
	Address string `json:"address"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type vaultResult struct {
	TotalBaseDeposited   string `json:"totalBaseDeposited"`
	TotalSyntheticSupply string `json:"totalSyntheticSupply"`
	AccruedYield         string `json:"accruedYield"`
	TreasuryOwed         string `json:"treasuryOwed"`
}

type configResult struct {
	Authority          string `json:"authority"`
	Treasury           string `json:"treasury"`
	FeeRateBps         uint64 `json:"feeRateBps"`
	TreasurySplitBps   uint64 `json:"treasurySplitBps"`
	MaxFlashLoanAmount string `json:"maxFlashLoanAmount"`
	CooldownSlots      uint64 `json:"cooldownSlots"`
	MinStake           string `json:"minStake"`
	Paused             bool   `json:"paused"`
}

type accountResult struct {
	Address     string `json:"address"`
	BalanceSOL  string `json:"balanceSOL"`
	BalanceFSOL string `json:"balanceFSOL"`
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected one parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, req *RPCRequest, field, value string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid "+field+" address", err.Error())
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAmount(w http.ResponseWriter, req *RPCRequest, field, value string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid "+field+" amount", value)
		return nil, false
	}
	return amount, true
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params initializeParams
	if !decodeParams(w, req, &params) {
		return
	}
	treasury, ok := parseAddress(w, req, "treasury", params.Treasury)
	if !ok {
		return
	}
	maxLoan, ok := parseAmount(w, req, "maxFlashLoanAmount", params.MaxFlashLoanAmount)
	if !ok {
		return
	}
	minStake, ok := parseAmount(w, req, "minStake", params.MinStake)
	if !ok {
		return
	}
	cfg, err := s.node.Initialize(vault.InitParams{
		FeeRateBps:         params.FeeRateBps,
		TreasurySplitBps:   params.TreasurySplitBps,
		Treasury:           treasury,
		MaxFlashLoanAmount: maxLoan,
		CooldownSlots:      params.CooldownSlots,
		MinStake:           minStake,
	})
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, configToResult(cfg))
}

func (s *Server) handleStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params amountParams
	if !decodeParams(w, req, &params) {
		return
	}
	from, ok := parseAddress(w, req, "from", params.From)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "stake", params.Amount)
	if !ok {
		return
	}
	minted, err := s.node.Stake(from, amount)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: minted.String()})
}

func (s *Server) handleUnstake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params amountParams
	if !decodeParams(w, req, &params) {
		return
	}
	from, ok := parseAddress(w, req, "from", params.From)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "unstake", params.Amount)
	if !ok {
		return
	}
	returned, err := s.node.Unstake(from, amount)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: returned.String()})
}

func (s *Server) handleHarvest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params amountParams
	if !decodeParams(w, req, &params) {
		return
	}
	from, ok := parseAddress(w, req, "from", params.From)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "harvest", params.Amount)
	if !ok {
		return
	}
	paid, err := s.node.Harvest(from, amount)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: paid.String()})
}

func (s *Server) handleFlashLoan(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params flashLoanParams
	if !decodeParams(w, req, &params) {
		return
	}
	borrower, ok := parseAddress(w, req, "borrower", params.Borrower)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "loan", params.Amount)
	if !ok {
		return
	}
	var data []byte
	if trimmed := strings.TrimSpace(params.Data); trimmed != "" {
		decoded, err := hex.DecodeString(strings.TrimPrefix(trimmed, "0x"))
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid loan data", err.Error())
			return
		}
		data = decoded
	}
	if err := s.node.FlashLoan(borrower, amount, strings.TrimSpace(params.Receiver), data); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetVault(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	v, err := s.node.GetVault()
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultResult{
		TotalBaseDeposited:   v.TotalBaseDeposited.String(),
		TotalSyntheticSupply: v.TotalSyntheticSupply.String(),
		AccruedYield:         v.AccruedYield.String(),
		TreasuryOwed:         v.TreasuryOwed.String(),
	})
}

func configToResult(cfg *vault.Config) configResult {
	return configResult{
		Authority:          cfg.Authority.String(),
		Treasury:           cfg.Treasury.String(),
		FeeRateBps:         cfg.FeeRateBps,
		TreasurySplitBps:   cfg.TreasurySplitBps,
		MaxFlashLoanAmount: cfg.MaxFlashLoanAmount.String(),
		CooldownSlots:      cfg.CooldownSlots,
		MinStake:           cfg.MinStake.String(),
		Paused:             cfg.Paused,
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.node.GetConfig()
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, configToResult(cfg))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, ok := parseAddress(w, req, "account", params.Address)
	if !ok {
		return
	}
	acc, err := s.node.GetAccount(addr)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, accountResult{
		Address:     addr.String(),
		BalanceSOL:  acc.BalanceSOL.String(),
		BalanceFSOL: acc.BalanceFSOL.String(),
	})
}

func (s *Server) adminCaller(w http.ResponseWriter, r *http.Request, req *RPCRequest, encoded string) (crypto.Address, bool) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return crypto.Address{}, false
	}
	return parseAddress(w, req, "authority", encoded)
}

func (s *Server) handleSetPause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params pauseParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.adminCaller(w, r, req, params.Authority)
	if !ok {
		return
	}
	if err := s.node.SetPause(caller, params.Paused); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUpdateFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params feeParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.adminCaller(w, r, req, params.Authority)
	if !ok {
		return
	}
	if err := s.node.UpdateFees(caller, params.FeeRateBps); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleAddFeeTier(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params feeTierParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.adminCaller(w, r, req, params.Authority)
	if !ok {
		return
	}
	threshold, ok := parseAmount(w, req, "threshold", params.Threshold)
	if !ok {
		return
	}
	if err := s.node.AddFeeTier(caller, threshold, params.FeeBps); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleClearFeeTiers(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params authorityParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.adminCaller(w, r, req, params.Authority)
	if !ok {
		return
	}
	if err := s.node.ClearFeeTiers(caller); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleWithdrawTreasury(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Authority string `json:"authority"`
		Amount    string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.adminCaller(w, r, req, params.Authority)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "withdraw", params.Amount)
	if !ok {
		return
	}
	paid, err := s.node.WithdrawTreasuryFees(caller, amount)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: paid.String()})
}
