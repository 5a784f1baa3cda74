//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

const DefaultDBFile = "landmark.sqlite3"

const (
	metaNextID = "next_id"
	batchSize  = 500
)

var errDBClientNil = errors.New("db client is nil")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Track struct {
	ID               int    `gorm:"primaryKey;autoIncrement:false"`
	Name             string `gorm:"not null"`
	FingerprintCount int
	CreatedAt        time.Time
}

// Fingerprint rows keep bucket order through their autoincrement ID.
type Fingerprint struct {
	ID      uint  `gorm:"primaryKey;autoIncrement"`
	Hash    int64 `gorm:"index:idx_hash"`
	TrackID int   `gorm:"index:idx_track"`
	Anchor  int
}

type Meta struct {
	Name  string `gorm:"primaryKey;type:varchar(32)"`
	Value int
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("LANDMARK_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ioFailure("creating db dir", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, ioFailure("opening sqlite db", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, ioFailure("getting sql.DB from gorm", err)
	}

	// sqlite allows a single writer; one connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &Fingerprint{}, &Meta{}); err != nil {
		sqlDB.Close()
		return nil, ioFailure("auto migrate", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// AppendTrack stores a track, its fingerprints and the advanced ID counter in
// one transaction.
func (c *DBClient) AppendTrack(ctx context.Context, t catalog.Track) error {
	if c == nil || c.DB == nil {
		return errDBClientNil
	}

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Track{ID: t.ID, Name: t.Name, FingerprintCount: len(t.Fingerprints)}).Error; err != nil {
			return fmt.Errorf("inserting track: %w", err)
		}
		if err := insertFingerprints(tx, t.ID, t.Fingerprints); err != nil {
			return err
		}
		return setNextID(tx, t.ID+1)
	})
	if err != nil {
		return ioFailure(fmt.Sprintf("appending track %d", t.ID), err)
	}
	return nil
}

func insertFingerprints(tx *gorm.DB, trackID int, fps []fingerprint.Fingerprint) error {
	rows := make([]Fingerprint, 0, min(len(fps), 1000))
	for _, fp := range fps {
		rows = append(rows, Fingerprint{Hash: int64(fp.Hash), TrackID: trackID, Anchor: fp.Anchor})
		if len(rows) >= 1000 {
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("batch insert fingerprints: %w", err)
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("batch insert last fingerprints: %w", err)
		}
	}
	return nil
}

func setNextID(tx *gorm.DB, next int) error {
	meta := Meta{Name: metaNextID, Value: next}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
	if err != nil {
		return fmt.Errorf("updating next id: %w", err)
	}
	return nil
}

// Save replaces the whole database content with s.
func (c *DBClient) Save(ctx context.Context, s *catalog.Snapshot) error {
	if c == nil || c.DB == nil {
		return errDBClientNil
	}

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&Fingerprint{}, &Track{}, &Meta{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clearing table: %w", err)
			}
		}

		counts := make(map[int]int, len(s.Names))
		rows := make([]Fingerprint, 0, 1000)
		for _, h := range s.Hashes() {
			for _, e := range s.Buckets[h] {
				counts[e.TrackID]++
				rows = append(rows, Fingerprint{Hash: int64(h), TrackID: e.TrackID, Anchor: e.Anchor})
				if len(rows) >= 1000 {
					if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
						return fmt.Errorf("batch insert fingerprints: %w", err)
					}
					rows = rows[:0]
				}
			}
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("batch insert last fingerprints: %w", err)
			}
		}

		tracks := make([]Track, 0, len(s.Names))
		for id, name := range s.Names {
			tracks = append(tracks, Track{ID: id, Name: name, FingerprintCount: counts[id]})
		}
		if len(tracks) > 0 {
			if err := tx.CreateInBatches(tracks, batchSize).Error; err != nil {
				return fmt.Errorf("inserting tracks: %w", err)
			}
		}
		return setNextID(tx, s.NextID)
	})
	if err != nil {
		return ioFailure("saving snapshot", err)
	}
	return nil
}

// Load reads the whole catalog. An empty database yields an empty snapshot.
func (c *DBClient) Load(ctx context.Context) (*catalog.Snapshot, error) {
	if c == nil || c.DB == nil {
		return nil, errDBClientNil
	}
	db := c.DB.WithContext(ctx)
	s := catalog.NewSnapshot()

	var meta Meta
	err := db.Where("name = ?", metaNextID).First(&meta).Error
	switch {
	case err == nil:
		s.NextID = meta.Value
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, ioFailure("reading next id", err)
	}

	var tracks []Track
	if err := db.Order("id").Find(&tracks).Error; err != nil {
		return nil, ioFailure("reading tracks", err)
	}
	for _, t := range tracks {
		s.Names[t.ID] = t.Name
	}

	var batch []Fingerprint
	res := db.FindInBatches(&batch, 5000, func(tx *gorm.DB, _ int) error {
		for _, r := range batch {
			h := fingerprint.Hash(uint64(r.Hash))
			s.Buckets[h] = append(s.Buckets[h], catalog.Entry{TrackID: r.TrackID, Anchor: r.Anchor})
		}
		return nil
	})
	if res.Error != nil {
		return nil, ioFailure("reading fingerprints", res.Error)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
