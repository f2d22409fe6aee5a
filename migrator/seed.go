package migrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/store/dbrow"
)

// Demo data is anchored in the past and expires far in the future so any test snapshot sees all of it
var (
	demoEpoch  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	demoExpiry = time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC)
)

var (
	demoTypes        = []feed.Type{feed.TypeAirdrop, feed.TypeQuest, feed.TypeStaking, feed.TypeYield, feed.TypePoints}
	demoChains       = [][]string{{"ethereum"}, {"base"}, {"arbitrum", "ethereum"}, {"solana"}, {"optimism", "base"}}
	demoDifficulties = []feed.Difficulty{feed.DifficultyEasy, feed.DifficultyMedium, feed.DifficultyHard}
	demoProtocols    = []string{"Layerzero", "Lido", "Jupiter", "Aave", "Zora", "Eigenlayer", "Pendle"}
)

// DemoWallet is a wallet with seeded activity
type DemoWallet struct {
	Address  string
	Activity feed.WalletActivity
}

// DemoCatalog generates n deterministic opportunities. Every seventh item is sponsored
// and every eleventh has a second, newer version.
func DemoCatalog(n int) []feed.Opportunity {
	items := make([]feed.Opportunity, 0, n+n/11)
	for i := range n {
		published := demoEpoch.Add(time.Duration(i) * time.Hour)
		o := feed.Opportunity{
			ID:          fmt.Sprintf("demo-%03d", i),
			Type:        demoTypes[i%len(demoTypes)],
			Title:       fmt.Sprintf("%s campaign %d", demoProtocols[i%len(demoProtocols)], i),
			Protocol:    demoProtocols[i%len(demoProtocols)],
			Chains:      demoChains[i%len(demoChains)],
			TrustScore:  60 + (i*37)%41,
			PublishedAt: published,
			Difficulty:  demoDifficulties[i%len(demoDifficulties)],
			RewardMin:   decimal.NewFromInt(int64(10 * (i%9 + 1))),
			RewardMax:   decimal.NewFromInt(int64(100 * (i%9 + 1))),
			Sponsored:   i%7 == 3,
			Featured:    i%13 == 5,
			UpdatedAt:   published,
		}
		if i%3 != 0 {
			expiry := demoExpiry.Add(time.Duration(i) * 24 * time.Hour)
			o.ExpiresAt = &expiry
		}
		if i%5 == 1 {
			o.Urgency = []feed.Urgency{feed.UrgencyHot}
		}
		items = append(items, o)

		if i%11 == 0 {
			next := o
			next.Title += " (extended)"
			next.UpdatedAt = o.UpdatedAt.Add(30 * time.Minute)
			items = append(items, next)
		}
	}
	return items
}

// DemoWallets returns wallets with completions and saves over the demo catalog
func DemoWallets() []DemoWallet {
	at := demoEpoch.Add(24 * time.Hour)
	return []DemoWallet{
		{
			Address: "0xdemo-quester",
			Activity: feed.WalletActivity{
				PreferredChains: []string{"base"},
				Completed: []feed.Activity{
					{OpportunityID: "demo-001", Type: feed.TypeQuest, Chains: []string{"base"}, At: at},
					{OpportunityID: "demo-006", Type: feed.TypeQuest, Chains: []string{"base"}, At: at.Add(time.Hour)},
				},
				Saved: []feed.Activity{
					{OpportunityID: "demo-011", Type: feed.TypeQuest, Chains: []string{"base"}, At: at.Add(2 * time.Hour)},
				},
			},
		},
		{
			Address: "0xdemo-staker",
			Activity: feed.WalletActivity{
				Completed: []feed.Activity{
					{OpportunityID: "demo-002", Type: feed.TypeStaking, Chains: []string{"arbitrum", "ethereum"}, At: at},
				},
			},
		},
	}
}

// SeedCatalog bulk copies opportunity versions, skipping versions already present
func SeedCatalog(ctx context.Context, pool *pgxpool.Pool, items []feed.Opportunity) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	_, err = tx.Exec(ctx, `
		CREATE TEMPORARY TABLE temp_opportunity_versions
		(LIKE opportunity_versions INCLUDING DEFAULTS) ON COMMIT DROP
	`)
	if err != nil {
		return fmt.Errorf("%w: temp table: %w", ErrSeedFailed, err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"temp_opportunity_versions"},
		dbrow.OpportunityColumns,
		pgx.CopyFromRows(dbrow.OpportunitiesToRows(items)),
	)
	if err != nil {
		return fmt.Errorf("%w: copy opportunities: %w", ErrSeedFailed, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO opportunity_versions SELECT * FROM temp_opportunity_versions
		ON CONFLICT (id, updated_at) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("%w: insert opportunities: %w", ErrSeedFailed, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}
	return nil
}

// SeedWalletActivity writes preferences, completions and saves of each wallet in one batch
func SeedWalletActivity(ctx context.Context, pool *pgxpool.Pool, wallets []DemoWallet) error {
	batch := &pgx.Batch{}
	for _, w := range wallets {
		batch.Queue(`INSERT INTO wallet_preferences (wallet, preferred_chains) VALUES ($1, $2)
			ON CONFLICT (wallet) DO UPDATE SET preferred_chains = EXCLUDED.preferred_chains`,
			w.Address, nonNil(w.Activity.PreferredChains))
		for _, a := range w.Activity.Completed {
			batch.Queue(`INSERT INTO wallet_completions (wallet, opportunity_id, type, chains, completed_at)
				VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
				w.Address, a.OpportunityID, string(a.Type), nonNil(a.Chains), a.At)
		}
		for _, a := range w.Activity.Saved {
			batch.Queue(`INSERT INTO wallet_saves (wallet, opportunity_id, type, chains, saved_at)
				VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
				w.Address, a.OpportunityID, string(a.Type), nonNil(a.Chains), a.At)
		}
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%w: wallet activity: %w", ErrSeedFailed, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
