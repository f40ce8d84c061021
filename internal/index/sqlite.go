package index

import (
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nas-tidy/internal/failure"
)

// recordRow is the database shape of a FileRecord. Seq keeps the index order.
type recordRow struct {
	ID           uint   `gorm:"primarykey"`
	Seq          int    `gorm:"not null;index"`
	Path         string `gorm:"not null;index"`
	Hash         string `gorm:"not null;index"`
	CreationTime string `gorm:"not null"`
	Size         int64  `gorm:"not null"`
}

func (recordRow) TableName() string { return "file_records" }

// SQLiteStore keeps the index in a SQLite database.
type SQLiteStore struct {
	path   string
	db     *gorm.DB
	logger *log.Logger
	// saved is false for a database created by this process and never
	// written, which Load reports as absent.
	saved bool
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the schema.
func NewSQLiteStore(path string, lg *log.Logger) (*SQLiteStore, error) {
	if lg == nil {
		lg = log.Default()
	}
	_, statErr := os.Stat(path)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, failure.New(failure.Persistence, "open", path, err)
	}
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, failure.New(failure.Persistence, "migrate", path, err)
	}
	return &SQLiteStore{path: path, db: db, logger: lg, saved: statErr == nil}, nil
}

func (s *SQLiteStore) Location() string { return s.path }

func (s *SQLiteStore) Load() (Index, bool) {
	if !s.saved {
		s.logger.Printf("index database does not exist: %s", s.path)
		return nil, false
	}
	var rows []recordRow
	if err := s.db.Order("seq").Find(&rows).Error; err != nil {
		s.logger.Printf("%v", failure.New(failure.Persistence, "load", s.path, err))
		return nil, false
	}
	idx := make(Index, 0, len(rows))
	for _, row := range rows {
		t, err := ParseTime(row.CreationTime)
		if err != nil {
			s.logger.Printf("%v", failure.New(failure.Persistence, "parse", row.Path, err))
			return nil, false
		}
		idx = append(idx, FileRecord{Path: row.Path, Hash: row.Hash, CreationTime: t, Size: row.Size})
	}
	return idx, true
}

// Save replaces every row in one transaction.
func (s *SQLiteStore) Save(idx Index) error {
	rows := make([]recordRow, 0, len(idx))
	for i, r := range idx {
		rows = append(rows, recordRow{
			Seq:          i,
			Path:         r.Path,
			Hash:         r.Hash,
			CreationTime: FormatTime(r.CreationTime),
			Size:         r.Size,
		})
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&recordRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err == nil {
		s.saved = true
	}
	return failure.New(failure.Persistence, "save", s.path, err)
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
