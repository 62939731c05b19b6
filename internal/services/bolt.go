package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tejaswanthparasa/chatbot/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB stores named widget profiles in a BoltDB file. Each profile is a complete WidgetConfig kept
// as JSON under its name in the profiles bucket.
type BoltDB struct {
	db *bolt.DB
}

var profilesBucket = []byte("profiles")

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(profilesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create profiles bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// Profiles returns the names of every stored profile in key order.
func (b BoltDB) Profiles(context.Context) ([]string, error) {
	var names []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Profile returns the profile stored under name. It returns an error wrapping models.ErrProfileNotFound
// if there is none.
func (b BoltDB) Profile(_ context.Context, name string) (models.WidgetConfig, error) {
	var cfg models.WidgetConfig
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(profilesBucket).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s", models.ErrProfileNotFound, name)
		}
		if err := json.Unmarshal(v, &cfg); err != nil {
			return fmt.Errorf("failed to unmarshal profile %s: %w", name, err)
		}
		return nil
	})
	return cfg, err
}

// SaveProfile stores cfg under name, replacing any profile already stored there.
func (b BoltDB) SaveProfile(_ context.Context, name string, cfg models.WidgetConfig) error {
	if name == "" {
		return errors.New("profile name is required")
	}

	v, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).Put([]byte(name), v)
	})
}

// SeedProfiles stores the default profile and every built-in preset merged onto it, skipping names that
// already hold a profile so that edited profiles survive restarts.
func (b BoltDB) SeedProfiles(context.Context) error {
	profiles := map[string]models.WidgetConfig{
		models.DefaultProfile: models.DefaultWidgetConfig(),
	}
	for name, preset := range models.PresetWidgetConfigs() {
		profiles[name] = models.DefaultWidgetConfig().Merge(preset)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(profilesBucket)
		for name, cfg := range profiles {
			if bucket.Get([]byte(name)) != nil {
				continue
			}
			v, err := json.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal profile %s: %w", name, err)
			}
			if err := bucket.Put([]byte(name), v); err != nil {
				return fmt.Errorf("failed to store profile %s: %w", name, err)
			}
		}
		return nil
	})
}
