package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/fomo/client/pkg/fomo"
)

func parsePubkey(name, v string) (solana.PublicKey, error) {
	if v == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return pk, nil
}

func printResult(action string, res *fomo.Result) {
	fmt.Printf("%s: %s\n", action, res.Signature)
	if !res.Created.IsZero() {
		fmt.Printf("account: %s\n", res.Created)
	}
}

func runCreateRound(ctx context.Context, args []string) error {
	fs, c := newFlagSet("create-round")
	name := fs.String("name", "fomo-test", "collection name")
	uri := fs.String("uri", "", "collection metadata uri")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.CreateRound(ctx, *name, *uri)
		if err != nil {
			return err
		}
		fmt.Printf("round: %s (seed %d)\n", s.client.Round(), s.client.Seed())
		printResult("create-round", res)
		return nil
	})
}

func runCreateVaults(ctx context.Context, args []string) error {
	fs, c := newFlagSet("create-vaults")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.CreateVaults(ctx)
		if err != nil {
			return err
		}
		v := s.client.Vaults()
		fmt.Printf("mint_fee_vault: %s\nnft_pool_vault: %s\nmain_pool_vault: %s\n", v.MintFee, v.NftPool, v.MainPool)
		printResult("create-vaults", res)
		return nil
	})
}

func runStartRound(ctx context.Context, args []string) error {
	fs, c := newFlagSet("start-round")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.StartRound(ctx)
		if err != nil {
			return err
		}
		printResult("start-round", res)
		return nil
	})
}

func runCreateKey(ctx context.Context, args []string) error {
	fs, c := newFlagSet("create-key")
	maxPrice := fs.Uint64("max-price", 0, "highest price in lamports to pay (0 = no limit)")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.CreateKey(ctx, *maxPrice)
		if err != nil {
			return err
		}
		fmt.Printf("create-key: %s\nkey: #%d\nasset: %s\n", res.Signature, res.Index, res.Asset)
		return nil
	})
}

func runBurnKey(ctx context.Context, args []string) error {
	fs, c := newFlagSet("burn-key")
	index := fs.Uint64P("index", "i", 0, "key index")
	address := fs.StringP("address", "a", "", "asset address of the key (looked up when empty)")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	if *index == 0 {
		return errors.New("--index is required")
	}
	asset, err := parsePubkey("address", *address)
	if err != nil {
		return err
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.BurnKey(ctx, *index, asset)
		if err != nil {
			return err
		}
		printResult("burn-key", res)
		return nil
	})
}

func runFeeClaim(ctx context.Context, args []string) error {
	fs, c := newFlagSet("fee-claim")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.FeeClaim(ctx)
		if err != nil {
			return err
		}
		printResult("fee-claim", res)
		return nil
	})
}

func runUpdateRound(ctx context.Context, args []string) error {
	fs, c := newFlagSet("update-round")
	increment := fs.Uint64("increment", 0, "lamports added to the price per key index")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	if !fs.Changed("increment") {
		return errors.New("--increment is required")
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.UpdateRound(ctx, *increment)
		if err != nil {
			return err
		}
		printResult("update-round", res)
		return nil
	})
}

func runWinnerClaim(ctx context.Context, args []string) error {
	fs, c := newFlagSet("winner-claim")
	address := fs.StringP("address", "a", "", "winner address (defaults to the keypair)")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	winner, err := parsePubkey("address", *address)
	if err != nil {
		return err
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.WinnerClaim(ctx, winner)
		if err != nil {
			return err
		}
		printResult("winner-claim", res)
		return nil
	})
}

func runTransferKey(ctx context.Context, args []string) error {
	fs, c := newFlagSet("transfer-key")
	address := fs.StringP("address", "a", "", "asset address of the key")
	to := fs.String("to", "", "new owner")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	asset, err := parsePubkey("address", *address)
	if err != nil {
		return err
	}
	owner, err := parsePubkey("to", *to)
	if err != nil {
		return err
	}
	if asset.IsZero() || owner.IsZero() {
		return errors.New("--address and --to are required")
	}
	return withSession(ctx, c, true, func(ctx context.Context, s *session) error {
		res, err := s.client.TransferKey(ctx, asset, owner)
		if err != nil {
			return err
		}
		printResult("transfer-key", res)
		return nil
	})
}

func runRound(ctx context.Context, args []string) error {
	fs, c := newFlagSet("round")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	return withSession(ctx, c, false, func(ctx context.Context, s *session) error {
		st, err := s.client.Status(ctx)
		if err != nil {
			return err
		}
		r := st.Round
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "round\t%s\n", st.Address)
		fmt.Fprintf(w, "name\t%s\n", r.Name)
		fmt.Fprintf(w, "authority\t%s\n", r.Authority)
		fmt.Fprintf(w, "seed\t%d\n", r.Seed)
		fmt.Fprintf(w, "mint_counter\t%d\n", r.MintCounter)
		fmt.Fprintf(w, "burned\t%d\n", r.NftBurnCounter)
		fmt.Fprintf(w, "closes\t%s\n", time.Unix(int64(r.RoundCloseTimestamp), 0).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "open\t%t\n", st.Open)
		fmt.Fprintf(w, "next_price\t%d\n", st.NextPrice)
		if s.ledger == nil {
			if parts, err := s.client.QuoteTokens(ctx, st.NextPrice); err != nil {
				s.log.Debug("failed to quote next key", "error", err)
			} else {
				fmt.Fprintf(w, "next_price_tokens\t%d/%d/%d\n", parts[0], parts[1], parts[2])
			}
		}
		fmt.Fprintf(w, "mint_fee_vault\t%d\n", st.Vaults.MintFee)
		fmt.Fprintf(w, "nft_pool_vault\t%d\n", st.Vaults.NftPool)
		fmt.Fprintf(w, "main_pool_vault\t%d\n", st.Vaults.MainPool)
		if st.CurrentKey != nil {
			fmt.Fprintf(w, "current_key\t#%d %s (owner %s)\n", st.CurrentKey.Key.KeyIndex, st.CurrentKey.Key.NftMint, st.CurrentKey.Asset.Owner)
		}
		fmt.Fprintf(w, "winner_claimed\t%t\n", r.WinnerClaimed != 0)
		return w.Flush()
	})
}

func runAirdrop(ctx context.Context, args []string) error {
	fs, c := newFlagSet("airdrop")
	lamports := fs.Uint64("lamports", 1_000_000_000, "lamports to credit")
	to := fs.String("to", "", "wallet to fund (defaults to the keypair)")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	wallet, err := parsePubkey("to", *to)
	if err != nil {
		return err
	}
	return withSession(ctx, c, wallet.IsZero(), func(ctx context.Context, s *session) error {
		if err := requireLocal(s, "airdrop"); err != nil {
			return err
		}
		if wallet.IsZero() {
			wallet = s.payer.PublicKey()
		}
		if err := s.ledger.Airdrop(ctx, wallet, *lamports); err != nil {
			return err
		}
		bal, err := s.ledger.Balance(ctx, wallet)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d lamports\n", wallet, bal)
		return nil
	})
}

func runHistory(ctx context.Context, args []string) error {
	fs, c := newFlagSet("history")
	if err := parse(fs, c, args); err != nil {
		return err
	}
	return withSession(ctx, c, false, func(ctx context.Context, s *session) error {
		if err := requireLocal(s, "history"); err != nil {
			return err
		}
		txs, err := s.ledger.Transactions(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIME\tSIGNATURE\tINSTRUCTIONS")
		for _, tx := range txs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", tx.Seq, time.Unix(tx.UnixTime, 0).UTC().Format(time.RFC3339), tx.Signature, tx.Instructions)
		}
		return w.Flush()
	})
}
