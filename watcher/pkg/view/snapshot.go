package view

import (
	"time"

	"github.com/malbeclabs/fomo/client/pkg/fomo"
)

type Vaults struct {
	MintFee  uint64 `json:"mint_fee"`
	NftPool  uint64 `json:"nft_pool"`
	MainPool uint64 `json:"main_pool"`
}

type Snapshot struct {
	Address        string       `json:"address"`
	Name           string       `json:"name"`
	Authority      string       `json:"authority"`
	Seed           uint64       `json:"seed"`
	MintCounter    uint64       `json:"mint_counter"`
	BurnCounter    uint64       `json:"burn_counter"`
	Holders        uint64       `json:"holders"`
	CloseTimestamp uint64       `json:"close_timestamp"`
	BasicMintFee   uint64       `json:"basic_mint_fee"`
	Increment      uint64       `json:"increment"`
	NextPrice      uint64       `json:"next_price"`
	Open           bool         `json:"open"`
	Ended          bool         `json:"ended"`
	WinnerClaimed  bool         `json:"winner_claimed"`
	Vaults         Vaults       `json:"vaults"`
	CurrentKey     *KeySnapshot `json:"current_key,omitempty"`
	RefreshedAt    time.Time    `json:"refreshed_at"`
}

type KeySnapshot struct {
	Index   uint64 `json:"index"`
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Owner   string `json:"owner"`
	Name    string `json:"name"`
	URI     string `json:"uri"`
	Frozen  bool   `json:"frozen"`
	Burned  bool   `json:"burned"`
}

func newSnapshot(st *fomo.Status, now time.Time) *Snapshot {
	r := st.Round
	s := &Snapshot{
		Address:        st.Address.String(),
		Name:           r.Name,
		Authority:      r.Authority.String(),
		Seed:           r.Seed,
		MintCounter:    r.MintCounter,
		BurnCounter:    r.NftBurnCounter,
		Holders:        st.Holders,
		CloseTimestamp: r.RoundCloseTimestamp,
		BasicMintFee:   r.RoundBasicMintFee,
		Increment:      r.RoundIncrement,
		NextPrice:      st.NextPrice,
		Open:           st.Open,
		Ended:          st.Ended,
		WinnerClaimed:  r.WinnerClaimed != 0,
		Vaults: Vaults{
			MintFee:  st.Vaults.MintFee,
			NftPool:  st.Vaults.NftPool,
			MainPool: st.Vaults.MainPool,
		},
		RefreshedAt: now.UTC(),
	}
	if st.CurrentKey != nil {
		s.CurrentKey = newKeySnapshot(st.CurrentKey)
	}
	return s
}

func newKeySnapshot(info *fomo.KeyInfo) *KeySnapshot {
	return &KeySnapshot{
		Index:   info.Key.KeyIndex,
		Address: info.Address.String(),
		Asset:   info.Key.NftMint.String(),
		Owner:   info.Asset.Owner.String(),
		Name:    info.Asset.Name,
		URI:     info.Asset.URI,
		Frozen:  info.Asset.Frozen,
		Burned:  info.Key.Burned(),
	}
}
