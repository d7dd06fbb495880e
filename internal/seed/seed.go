package seed

import (
	"context"
	"errors"
	"time"

	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const demoVenueName = "The Copper Still"

var demoBottles = []catalogdomain.Bottle{
	{Brand: "Amrut", Name: "Fusion Single Malt", PriceCents: 650000, VolumeML: 750},
	{Brand: "Paul John", Name: "Brilliance", PriceCents: 480000, VolumeML: 750},
	{Brand: "Rampur", Name: "Double Cask", PriceCents: 720000, VolumeML: 750},
}

// EnsureDemoCatalog seeds one venue and a small bottle list for local
// development. It is idempotent; reruns find the venue by name and stop.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var venue catalogdomain.Venue
		err := tx.WithContext(ctx).Where("name = ?", demoVenueName).First(&venue).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		venue = catalogdomain.Venue{
			ID:        node.Generate(),
			Name:      demoVenueName,
			Location:  "12 Lavelle Road, Bengaluru",
			IsOpen:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&venue).Error; err != nil {
			return err
		}

		for _, bottle := range demoBottles {
			bottle.ID = node.Generate()
			bottle.VenueID = venue.ID
			bottle.IsAvailable = true
			bottle.CreatedAt = now
			bottle.UpdatedAt = now
			if err := tx.WithContext(ctx).Create(&bottle).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
