package instruction

import (
	"github.com/gagliardetto/solana-go"
)

const (
	NameCreateRound  = "create_round"
	NameCreateVaults = "create_vaults"
	NameStartRound   = "start_round"
	NameCreateKey    = "create_key"
	NameBurnKey      = "burn_key"
	NameFeeClaim     = "fee_claim"
	NameUpdateRound  = "update_round"
	NameWinnerClaim  = "winner_claim"
	NameTransferKey  = "transfer_key"
)

// create_round

type CreateRoundAccounts struct {
	Authority  solana.PublicKey
	Collection solana.PublicKey
	Round      solana.PublicKey
}

type CreateRoundArgs struct {
	Seed uint64
	Name string
	URI  string
}

type CreateRound struct {
	Accounts CreateRoundAccounts
	Args     CreateRoundArgs
}

func (ix *CreateRound) Name() string { return NameCreateRound }
func (ix *CreateRound) args() any    { return &ix.Args }
func (ix *CreateRound) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		signer("authority", &a.Authority),
		signer("collection", &a.Collection),
		writable("round", &a.Round),
		program("system_program", solana.SystemProgramID),
	}
}

func NewCreateRoundInstruction(programID solana.PublicKey, accounts CreateRoundAccounts, args CreateRoundArgs) (solana.Instruction, error) {
	ix := &CreateRound{Accounts: accounts, Args: args}
	return build(programID, ix.Name(), ix.specs(), &ix.Args)
}

// create_vaults

type CreateVaultsAccounts struct {
	Authority     solana.PublicKey
	Round         solana.PublicKey
	TokenMint     solana.PublicKey
	MintFeeVault  solana.PublicKey
	NftPoolVault  solana.PublicKey
	MainPoolVault solana.PublicKey
}

type CreateVaults struct {
	Accounts CreateVaultsAccounts
}

func (ix *CreateVaults) Name() string { return NameCreateVaults }
func (ix *CreateVaults) args() any    { return nil }
func (ix *CreateVaults) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		signer("authority", &a.Authority),
		writable("round", &a.Round),
		readonly("token_mint", &a.TokenMint),
		writable("mint_fee_vault", &a.MintFeeVault),
		writable("nft_pool_vault", &a.NftPoolVault),
		writable("main_pool_vault", &a.MainPoolVault),
		program("token_program", solana.TokenProgramID),
		program("system_program", solana.SystemProgramID),
	}
}

func NewCreateVaultsInstruction(programID solana.PublicKey, accounts CreateVaultsAccounts) (solana.Instruction, error) {
	ix := &CreateVaults{Accounts: accounts}
	return build(programID, ix.Name(), ix.specs(), nil)
}

// PoolAccounts are the external liquidity pool accounts used to price keys.
type PoolAccounts struct {
	Pool        solana.PublicKey
	TokenAVault solana.PublicKey
	TokenBVault solana.PublicKey
}

// start_round

type StartRoundAccounts struct {
	Authority     solana.PublicKey
	Asset         solana.PublicKey
	Round         solana.PublicKey
	Collection    solana.PublicKey
	Key           solana.PublicKey
	MintFeeVault  solana.PublicKey
	NftPoolVault  solana.PublicKey
	MainPoolVault solana.PublicKey
	PoolAccounts
}

type StartRound struct {
	Accounts StartRoundAccounts
}

func (ix *StartRound) Name() string { return NameStartRound }
func (ix *StartRound) args() any    { return nil }
func (ix *StartRound) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		signer("authority", &a.Authority),
		signer("asset", &a.Asset),
		writable("round", &a.Round),
		writable("collection", &a.Collection),
		writable("key", &a.Key),
		writable("mint_fee_vault", &a.MintFeeVault),
		writable("nft_pool_vault", &a.NftPoolVault),
		writable("main_pool_vault", &a.MainPoolVault),
		readonly("pool", &a.Pool),
		readonly("a_token_vault", &a.TokenAVault),
		readonly("b_token_vault", &a.TokenBVault),
		program("system_program", solana.SystemProgramID),
	}
}

func NewStartRoundInstruction(programID solana.PublicKey, accounts StartRoundAccounts) (solana.Instruction, error) {
	ix := &StartRound{Accounts: accounts}
	return build(programID, ix.Name(), ix.specs(), nil)
}

// create_key

type CreateKeyAccounts struct {
	Authority     solana.PublicKey
	Asset         solana.PublicKey
	PreviousAsset solana.PublicKey
	Round         solana.PublicKey
	Collection    solana.PublicKey
	Key           solana.PublicKey
	PreviousKey   solana.PublicKey
	MintFeeVault  solana.PublicKey
	NftPoolVault  solana.PublicKey
	MainPoolVault solana.PublicKey
	PoolAccounts
}

type CreateKeyArgs struct {
	// MaxPrice bounds the lamports the buyer is willing to pay. Zero means no
	// bound.
	MaxPrice uint64
}

type CreateKey struct {
	Accounts CreateKeyAccounts
	Args     CreateKeyArgs
}

func (ix *CreateKey) Name() string { return NameCreateKey }
func (ix *CreateKey) args() any    { return &ix.Args }
func (ix *CreateKey) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		signer("authority", &a.Authority),
		signer("asset", &a.Asset),
		writable("previous_asset", &a.PreviousAsset),
		writable("round", &a.Round),
		writable("collection", &a.Collection),
		writable("key", &a.Key),
		writable("previous_key", &a.PreviousKey),
		writable("mint_fee_vault", &a.MintFeeVault),
		writable("nft_pool_vault", &a.NftPoolVault),
		writable("main_pool_vault", &a.MainPoolVault),
		readonly("pool", &a.Pool),
		readonly("a_token_vault", &a.TokenAVault),
		readonly("b_token_vault", &a.TokenBVault),
		program("system_program", solana.SystemProgramID),
	}
}

func NewCreateKeyInstruction(programID solana.PublicKey, accounts CreateKeyAccounts, args CreateKeyArgs) (solana.Instruction, error) {
	ix := &CreateKey{Accounts: accounts, Args: args}
	return build(programID, ix.Name(), ix.specs(), &ix.Args)
}

// burn_key

type BurnKeyAccounts struct {
	Authority    solana.PublicKey
	AuthorityATA solana.PublicKey
	Round        solana.PublicKey
	Collection   solana.PublicKey
	Asset        solana.PublicKey
	Key          solana.PublicKey
	NftPoolVault solana.PublicKey
	TokenMint    solana.PublicKey
}

type BurnKeyArgs struct {
	Index uint64
}

type BurnKey struct {
	Accounts BurnKeyAccounts
	Args     BurnKeyArgs
}

func (ix *BurnKey) Name() string { return NameBurnKey }
func (ix *BurnKey) args() any    { return &ix.Args }
func (ix *BurnKey) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		signer("authority", &a.Authority),
		writable("authority_ata", &a.AuthorityATA),
		writable("round", &a.Round),
		writable("collection", &a.Collection),
		writable("asset", &a.Asset),
		writable("key", &a.Key),
		writable("nft_pool_vault", &a.NftPoolVault),
		readonly("token_mint", &a.TokenMint),
		program("token_program", solana.TokenProgramID),
		program("system_program", solana.SystemProgramID),
	}
}

func NewBurnKeyInstruction(programID solana.PublicKey, accounts BurnKeyAccounts, args BurnKeyArgs) (solana.Instruction, error) {
	ix := &BurnKey{Accounts: accounts, Args: args}
	return build(programID, ix.Name(), ix.specs(), &ix.Args)
}

// fee_claim

type FeeClaimAccounts struct {
	Authority    solana.PublicKey
	AuthorityATA solana.PublicKey
	Round        solana.PublicKey
	MintFeeVault solana.PublicKey
	TokenMint    solana.PublicKey
}

type FeeClaim struct {
	Accounts FeeClaimAccounts
}

func (ix *FeeClaim) Name() string { return NameFeeClaim }
func (ix *FeeClaim) args() any    { return nil }
func (ix *FeeClaim) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		signer("authority", &a.Authority),
		writable("authority_ata", &a.AuthorityATA),
		readonly("round", &a.Round),
		writable("mint_fee_vault", &a.MintFeeVault),
		readonly("token_mint", &a.TokenMint),
		program("token_program", solana.TokenProgramID),
	}
}

func NewFeeClaimInstruction(programID solana.PublicKey, accounts FeeClaimAccounts) (solana.Instruction, error) {
	ix := &FeeClaim{Accounts: accounts}
	return build(programID, ix.Name(), ix.specs(), nil)
}

// update_round

type UpdateRoundAccounts struct {
	Authority solana.PublicKey
	Round     solana.PublicKey
}

type UpdateRoundArgs struct {
	IncrementAmount uint64
}

type UpdateRound struct {
	Accounts UpdateRoundAccounts
	Args     UpdateRoundArgs
}

func (ix *UpdateRound) Name() string { return NameUpdateRound }
func (ix *UpdateRound) args() any    { return &ix.Args }
func (ix *UpdateRound) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		readonlySigner("authority", &a.Authority),
		writable("round", &a.Round),
	}
}

func NewUpdateRoundInstruction(programID solana.PublicKey, accounts UpdateRoundAccounts, args UpdateRoundArgs) (solana.Instruction, error) {
	ix := &UpdateRound{Accounts: accounts, Args: args}
	return build(programID, ix.Name(), ix.specs(), &ix.Args)
}

// winner_claim

type WinnerClaimAccounts struct {
	Winner        solana.PublicKey
	WinnerATA     solana.PublicKey
	Round         solana.PublicKey
	Asset         solana.PublicKey
	Key           solana.PublicKey
	MainPoolVault solana.PublicKey
	TokenMint     solana.PublicKey
}

type WinnerClaimArgs struct {
	Address solana.PublicKey
}

type WinnerClaim struct {
	Accounts WinnerClaimAccounts
	Args     WinnerClaimArgs
}

func (ix *WinnerClaim) Name() string { return NameWinnerClaim }
func (ix *WinnerClaim) args() any    { return &ix.Args }
func (ix *WinnerClaim) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		signer("winner", &a.Winner),
		writable("winner_ata", &a.WinnerATA),
		writable("round", &a.Round),
		readonly("asset", &a.Asset),
		readonly("key", &a.Key),
		writable("main_pool_vault", &a.MainPoolVault),
		readonly("token_mint", &a.TokenMint),
		program("token_program", solana.TokenProgramID),
		program("system_program", solana.SystemProgramID),
	}
}

func NewWinnerClaimInstruction(programID solana.PublicKey, accounts WinnerClaimAccounts, args WinnerClaimArgs) (solana.Instruction, error) {
	ix := &WinnerClaim{Accounts: accounts, Args: args}
	return build(programID, ix.Name(), ix.specs(), &ix.Args)
}

// transfer_key

type TransferKeyAccounts struct {
	Owner solana.PublicKey
	Asset solana.PublicKey
}

type TransferKeyArgs struct {
	NewOwner solana.PublicKey
}

type TransferKey struct {
	Accounts TransferKeyAccounts
	Args     TransferKeyArgs
}

func (ix *TransferKey) Name() string { return NameTransferKey }
func (ix *TransferKey) args() any    { return &ix.Args }
func (ix *TransferKey) specs() []accountSpec {
	a := &ix.Accounts
	return []accountSpec{
		readonlySigner("owner", &a.Owner),
		writable("asset", &a.Asset),
	}
}

func NewTransferKeyInstruction(programID solana.PublicKey, accounts TransferKeyAccounts, args TransferKeyArgs) (solana.Instruction, error) {
	ix := &TransferKey{Accounts: accounts, Args: args}
	return build(programID, ix.Name(), ix.specs(), &ix.Args)
}
