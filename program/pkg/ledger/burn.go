package ledger

import (
	"log/slog"

	"github.com/malbeclabs/fomo/program/pkg/fomoerr"
	"github.com/malbeclabs/fomo/program/pkg/instruction"
	"github.com/malbeclabs/fomo/program/pkg/pda"
)

func (l *Ledger) burnKey(t *txn, log *slog.Logger, ix *instruction.BurnKey) error {
	a, index := ix.Accounts, ix.Args.Index

	round, err := t.loadRound(a.Round)
	if err != nil {
		return err
	}
	keyPDA, _, err := pda.DeriveKeyPDA(l.cfg.ProgramID, a.Round, index)
	if err != nil {
		return err
	}
	if !a.Key.Equals(keyPDA) {
		return fomoerr.Newf(fomoerr.CodeInvalidKeyAccount, "key #%d must be %s, got %s", index, keyPDA, a.Key)
	}
	key, err := t.loadKey(a.Key)
	if err != nil {
		return fomoerr.Newf(fomoerr.CodeInvalidKeyAccount, "key #%d: %v", index, err)
	}
	if key.Burned() {
		return fomoerr.Newf(fomoerr.CodeInvalidKeyAccount, "key #%d already burned", index)
	}
	if !key.NftMint.Equals(a.Asset) {
		return fomoerr.Newf(fomoerr.CodeInvalidAsset, "key #%d belongs to asset %s, got %s", index, key.NftMint, a.Asset)
	}
	asset, err := t.loadAsset(a.Asset)
	if err != nil {
		return err
	}
	if !asset.Collection.Equals(round.Collection) || !a.Collection.Equals(round.Collection) {
		return fomoerr.Newf(fomoerr.CodeInvalidAsset, "asset %s is not in collection %s", a.Asset, round.Collection)
	}
	if !asset.Owner.Equals(a.Authority) {
		return fomoerr.Newf(fomoerr.CodeInvalidOwner, "asset %s is owned by %s", a.Asset, asset.Owner)
	}
	if err := requireAccount("nft_pool_vault", a.NftPoolVault, round.NftPoolVault); err != nil {
		return err
	}
	if err := requireAccount("token_mint", a.TokenMint, round.TokenMint); err != nil {
		return err
	}

	holders, err := round.Holders()
	if err != nil {
		return fomoerr.Newf(fomoerr.CodeCalculationError, "%v", err)
	}
	if holders == 0 {
		return fomoerr.Newf(fomoerr.CodeDivisionError, "round has no unburned keys")
	}
	vault, err := t.loadTokenAccount(a.NftPoolVault)
	if err != nil {
		return err
	}
	share := vault.Amount / holders

	if err := t.ensureATA(a.Authority, round.TokenMint, a.AuthorityATA); err != nil {
		return err
	}
	if err := t.transferTokens(a.NftPoolVault, a.AuthorityATA, share); err != nil {
		return err
	}

	key.Exited = 1
	if err := t.save(a.Key, key); err != nil {
		return err
	}
	asset.Burned = true
	asset.Frozen = false
	if err := t.save(a.Asset, asset); err != nil {
		return err
	}
	collection, err := t.loadCollection(round.Collection)
	if err != nil {
		return err
	}
	if collection.CurrentSize > 0 {
		collection.CurrentSize--
	}
	if err := t.save(round.Collection, collection); err != nil {
		return err
	}
	round.NftBurnCounter++
	if err := t.saveRound(a.Round, round); err != nil {
		return err
	}

	log.Info("ledger: key burned", "round", a.Round, "index", index, "owner", a.Authority, "share", share, "holders", holders)
	return nil
}

func (l *Ledger) transferKey(t *txn, log *slog.Logger, ix *instruction.TransferKey) error {
	a := ix.Accounts

	asset, err := t.loadAsset(a.Asset)
	if err != nil {
		return err
	}
	if !asset.Owner.Equals(a.Owner) {
		return fomoerr.Newf(fomoerr.CodeInvalidOwner, "asset %s is owned by %s", a.Asset, asset.Owner)
	}
	if asset.Burned {
		return fomoerr.Newf(fomoerr.CodeInvalidAsset, "asset %s is burned", a.Asset)
	}
	if asset.Frozen {
		return fomoerr.Newf(fomoerr.CodeAssetFrozen, "asset %s is the current master key", a.Asset)
	}
	if ix.Args.NewOwner.IsZero() {
		return fomoerr.Newf(fomoerr.CodeInvalidAccount, "new owner is empty")
	}

	asset.Owner = ix.Args.NewOwner
	if err := t.save(a.Asset, asset); err != nil {
		return err
	}

	log.Info("ledger: key transferred", "asset", a.Asset, "index", asset.KeyIndex, "from", a.Owner, "to", ix.Args.NewOwner)
	return nil
}
