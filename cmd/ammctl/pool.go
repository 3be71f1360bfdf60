package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ammLedger/internal/address"
	"ammLedger/internal/model"
)

func newInitPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-pool",
		Short: "Create a pool for a mint pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				user, err := keyFlag(cmd, "user")
				if err != nil {
					return err
				}
				mintX, err := keyFlag(cmd, "mint-x")
				if err != nil {
					return err
				}
				mintY, err := keyFlag(cmd, "mint-y")
				if err != nil {
					return err
				}
				seed, _ := cmd.Flags().GetUint64("seed")
				feeBps, _ := cmd.Flags().GetUint16("fee-bps")

				ins := model.Instruction{
					Kind:   model.KindInitialize,
					User:   user,
					Seed:   seed,
					FeeBps: feeBps,
					MintX:  mintX,
					MintY:  mintY,
				}
				if raw, _ := cmd.Flags().GetString("authority"); raw != "" {
					authority, err := keyFlag(cmd, "authority")
					if err != nil {
						return err
					}
					ins.Authority = &authority
				}
				return a.apply(ctx, cmd, ins)
			})
		},
	}
	cmd.Flags().String("user", "", "initializer public key (base58)")
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().Uint16("fee-bps", 30, "swap fee in basis points")
	cmd.Flags().String("mint-x", "", "mint of asset X (base58)")
	cmd.Flags().String("mint-y", "", "mint of asset Y (base58)")
	cmd.Flags().String("authority", "", "optional pool authority allowed to lock and unlock")
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit both assets for an exact amount of LP tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				pool, user, err := poolAndUser(cmd, a)
				if err != nil {
					return err
				}
				amount, _ := cmd.Flags().GetUint64("amount")
				maxX, _ := cmd.Flags().GetUint64("max-x")
				maxY, _ := cmd.Flags().GetUint64("max-y")
				return a.apply(ctx, cmd, model.Instruction{
					Kind:   model.KindDeposit,
					Pool:   pool,
					User:   user,
					Amount: amount,
					LimitA: maxX,
					LimitB: maxY,
				})
			})
		},
	}
	addPoolFlags(cmd)
	cmd.Flags().Uint64("amount", 0, "LP tokens to mint")
	cmd.Flags().Uint64("max-x", 0, "maximum X to pay")
	cmd.Flags().Uint64("max-y", 0, "maximum Y to pay")
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Sell one asset of a pool for the other",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				pool, user, err := poolAndUser(cmd, a)
				if err != nil {
					return err
				}
				side, _ := cmd.Flags().GetString("sell")
				var isX bool
				switch side {
				case "x", "X":
					isX = true
				case "y", "Y":
				default:
					return fmt.Errorf("--sell must be x or y")
				}
				amount, _ := cmd.Flags().GetUint64("amount")
				minOut, _ := cmd.Flags().GetUint64("min-out")
				return a.apply(ctx, cmd, model.Instruction{
					Kind:   model.KindSwap,
					Pool:   pool,
					User:   user,
					IsX:    isX,
					Amount: amount,
					LimitA: minOut,
				})
			})
		},
	}
	addPoolFlags(cmd)
	cmd.Flags().String("sell", "x", "asset sold: x or y")
	cmd.Flags().Uint64("amount", 0, "amount sold, fee included")
	cmd.Flags().Uint64("min-out", 0, "minimum amount received")
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn LP tokens for a pro-rata share of both vaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				pool, user, err := poolAndUser(cmd, a)
				if err != nil {
					return err
				}
				amount, _ := cmd.Flags().GetUint64("amount")
				minX, _ := cmd.Flags().GetUint64("min-x")
				minY, _ := cmd.Flags().GetUint64("min-y")
				return a.apply(ctx, cmd, model.Instruction{
					Kind:   model.KindWithdraw,
					Pool:   pool,
					User:   user,
					Amount: amount,
					LimitA: minX,
					LimitB: minY,
				})
			})
		},
	}
	addPoolFlags(cmd)
	cmd.Flags().Uint64("amount", 0, "LP tokens to burn")
	cmd.Flags().Uint64("min-x", 0, "minimum X received")
	cmd.Flags().Uint64("min-y", 0, "minimum Y received")
	return cmd
}

func newLockCmd(lock bool) *cobra.Command {
	use, short, kind := "unlock", "Reopen a locked pool", model.KindUnlock
	if lock {
		use, short, kind = "lock", "Block deposits and swaps on a pool", model.KindLock
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				pool, user, err := poolAndUser(cmd, a)
				if err != nil {
					return err
				}
				return a.apply(ctx, cmd, model.Instruction{Kind: kind, Pool: pool, User: user})
			})
		},
	}
	addPoolFlags(cmd)
	return cmd
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Print a pool, its vault balances and LP supply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				key, err := poolFlag(cmd, a.engine)
				if err != nil {
					return err
				}
				state, err := a.ledger.PoolState(key)
				if err != nil {
					return fmt.Errorf("pool %s: %w", key, err)
				}
				return printJSON(cmd, state)
			})
		},
	}
	cmd.Flags().String("pool", "", "pool config address (base58)")
	cmd.Flags().Uint64("seed", 0, "pool seed, used when --pool is empty")
	return cmd
}

func poolAndUser(cmd *cobra.Command, a *app) (pool, user address.PublicKey, err error) {
	if pool, err = poolFlag(cmd, a.engine); err != nil {
		return pool, user, err
	}
	user, err = keyFlag(cmd, "user")
	return pool, user, err
}
