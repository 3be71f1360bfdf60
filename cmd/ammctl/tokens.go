package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 keypair usable as a user or mint key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			key, err := address.FromBytes(pub)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"public_key":  key.String(),
				"private_key": base58.Encode(priv),
			})
		},
	}
}

func newCreateMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-mint",
		Short: "Create a token mint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				authority, err := keyFlag(cmd, "authority")
				if err != nil {
					return err
				}
				decimals, _ := cmd.Flags().GetUint8("decimals")

				var mintKey address.PublicKey
				if raw, _ := cmd.Flags().GetString("mint"); raw != "" {
					if mintKey, err = keyFlag(cmd, "mint"); err != nil {
						return err
					}
				} else {
					pub, _, err := ed25519.GenerateKey(rand.Reader)
					if err != nil {
						return err
					}
					if mintKey, err = address.FromBytes(pub); err != nil {
						return err
					}
				}

				err = a.ledger.Execute(ctx, mintKey, func(tx *ledger.Txn) error {
					_, err := tx.CreateMint(mintKey, authority, decimals)
					return err
				})
				if err != nil {
					return fmt.Errorf("create mint: %w", err)
				}
				a.logger.Info("mint created", zap.Stringer("mint", mintKey), zap.Stringer("authority", authority))

				mint, err := a.ledger.Mint(mintKey)
				if err != nil {
					return err
				}
				return printJSON(cmd, mint)
			})
		},
	}
	cmd.Flags().String("mint", "", "mint address (base58), generated when empty")
	cmd.Flags().String("authority", "", "mint authority public key (base58)")
	cmd.Flags().Uint8("decimals", 6, "token decimals")
	return cmd
}

func newMintToCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint-to",
		Short: "Mint tokens into an owner's associated account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				mint, err := keyFlag(cmd, "mint")
				if err != nil {
					return err
				}
				owner, err := keyFlag(cmd, "owner")
				if err != nil {
					return err
				}
				authority, err := keyFlag(cmd, "authority")
				if err != nil {
					return err
				}
				amount, _ := cmd.Flags().GetUint64("amount")

				signer, err := ledger.UserSigner(authority)
				if err != nil {
					return err
				}
				err = a.ledger.Execute(ctx, mint, func(tx *ledger.Txn) error {
					account, err := tx.EnsureAssociatedAccount(owner, mint)
					if err != nil {
						return err
					}
					return tx.MintTo(mint, account, amount, signer)
				})
				if err != nil {
					return fmt.Errorf("mint to: %w", err)
				}
				a.logger.Info("minted", zap.Stringer("mint", mint), zap.Stringer("owner", owner), zap.Uint64("amount", amount))

				return printJSON(cmd, map[string]any{
					"owner":   owner,
					"mint":    mint,
					"balance": a.ledger.Balance(owner, mint),
				})
			})
		},
	}
	cmd.Flags().String("mint", "", "mint address (base58)")
	cmd.Flags().String("owner", "", "recipient public key (base58)")
	cmd.Flags().String("authority", "", "mint authority public key (base58)")
	cmd.Flags().Uint64("amount", 0, "amount in base units")
	return cmd
}

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print an owner's balance of a mint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				mint, err := keyFlag(cmd, "mint")
				if err != nil {
					return err
				}
				owner, err := keyFlag(cmd, "owner")
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"owner":   owner,
					"mint":    mint,
					"account": address.AssociatedTokenAddress(owner, mint),
					"balance": a.ledger.Balance(owner, mint),
				})
			})
		},
	}
	cmd.Flags().String("mint", "", "mint address (base58)")
	cmd.Flags().String("owner", "", "owner public key (base58)")
	return cmd
}
