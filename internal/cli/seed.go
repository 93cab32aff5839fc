package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo users and listings",
	Long: `Insert a small demo catalog: one owner with a few listings, two tenants
and an admin. Users are upserted by id so the command can be re-run; listing
ids are derived from the owner and title so they stay stable as well.

Examples:
  rentctl seed
  rentctl token u-tenant-1`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

type seedListing struct {
	Title string
}

var (
	seedUsers = []model.User{
		{ID: "u-owner-1", Name: "Hana Owner", Email: "owner1@example.com", Role: model.RoleOwner},
		{ID: "u-tenant-1", Name: "Kenji Tenant", Email: "tenant1@example.com", Role: model.RoleTenant},
		{ID: "u-tenant-2", Name: "Mia Tenant", Email: "tenant2@example.com", Role: model.RoleTenant},
		{ID: "u-admin", Name: "Admin", Email: "admin@example.com", Role: model.RoleAdmin},
	}
	seedListings = []seedListing{
		{Title: "Sunny 1LDK near the station"},
		{Title: "Quiet studio with balcony"},
		{Title: "Family house with garden"},
	}
)

// seedNamespace keeps seeded listing ids deterministic.
var seedNamespace = uuid.MustParse("6f1c1a52-4a8e-4b8e-9a55-2d1c3e0b7a10")

func runSeed(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	listings, err := seed(cmd.Context(), store.Directory)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "seeded %d users and %d listings\n", len(seedUsers), len(listings))
	for _, l := range listings {
		fmt.Fprintf(out, "  %s  %s\n", l.ID, l.Title)
	}
	return nil
}

func seed(ctx context.Context, dir repository.DirectoryRepository) ([]model.Listing, error) {
	for i := range seedUsers {
		u := seedUsers[i]
		if err := dir.SaveUser(ctx, &u); err != nil {
			return nil, fmt.Errorf("save user %s: %w", u.ID, err)
		}
	}
	owner := seedUsers[0].ID
	listings := make([]model.Listing, 0, len(seedListings))
	for _, sl := range seedListings {
		l := model.Listing{
			ID:      uuid.NewSHA1(seedNamespace, []byte(owner+"/"+sl.Title)).String(),
			OwnerID: owner,
			Title:   sl.Title,
		}
		if err := dir.SaveListing(ctx, &l); err != nil {
			return nil, fmt.Errorf("save listing %q: %w", sl.Title, err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}
