package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/dto"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestPositionRepositoryGet(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewPositionRepository(mockDB)

	openedAt := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	positionRows := func(rows ...entity.Position) *sqlmock.Rows {
		out := sqlmock.NewRows([]string{"id", "ticker", "status", "qty", "avg_entry_price", "opened_at"})
		for _, p := range rows {
			out.AddRow(p.ID, p.Ticker, p.Status, p.Qty, p.AvgEntryPrice, openedAt)
		}
		return out
	}

	t.Run("filters by ticker and status", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE ticker = $1 AND status IN ($2,$3) ORDER BY id DESC`)).
			WithArgs("005930", string(entity.PositionOpen), string(entity.PositionPartialExit)).
			WillReturnRows(positionRows(
				entity.Position{ID: 7, Ticker: "005930", Status: entity.PositionPartialExit, Qty: 4, AvgEntryPrice: 70000},
				entity.Position{ID: 3, Ticker: "005930", Status: entity.PositionOpen, Qty: 10, AvgEntryPrice: 69000},
			))

		results, err := repo.Get(context.Background(), dto.GetPositionsParam{
			Ticker:   "005930",
			Statuses: []string{string(entity.PositionOpen), string(entity.PositionPartialExit)},
		})
		if err != nil {
			t.Fatalf("unexpected error fetching positions: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 positions, got %d", len(results))
		}
		if results[0].ID != 7 || results[1].ID != 3 {
			t.Fatalf("positions not returned in id DESC order: %+v", results)
		}
	})

	t.Run("filters by ids", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE id IN ($1,$2) ORDER BY id DESC`)).
			WithArgs(uint(3), uint(7)).
			WillReturnRows(positionRows(
				entity.Position{ID: 7, Ticker: "005930", Status: entity.PositionClosed},
			))

		results, err := repo.Get(context.Background(), dto.GetPositionsParam{IDs: []uint{3, 7}})
		if err != nil {
			t.Fatalf("unexpected error fetching positions: %v", err)
		}
		if len(results) != 1 || results[0].ID != 7 {
			t.Fatalf("unexpected positions: %+v", results)
		}
	})

	t.Run("rejects empty filter", func(t *testing.T) {
		if _, err := repo.Get(context.Background(), dto.GetPositionsParam{}); err == nil {
			t.Fatal("expected error when no filter is provided")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryFindOpenByTicker(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewPositionRepository(mockDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE ticker = $1 AND status IN ($2,$3) ORDER BY id`)).
		WithArgs("000660", string(entity.PositionOpen), string(entity.PositionPendingEntry)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticker", "status", "qty"}).
			AddRow(uint(11), "000660", entity.PositionOpen, 5.0))

	results, err := repo.FindOpenByTicker(context.Background(), "000660")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != entity.PositionOpen {
		t.Fatalf("unexpected positions: %+v", results)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryUpdateTransition(t *testing.T) {
	t.Run("guards on source status", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		repo := NewPositionRepository(mockDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET "qty"=$1,"status"=$2 WHERE id = $3 AND status IN ($4,$5)`)).
			WithArgs(0.0, string(entity.PositionCancelled), uint(5), string(entity.PositionPendingEntry), string(entity.PositionOpen)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rows, err := repo.UpdateTransition(context.Background(), 5,
			[]entity.PositionStatus{entity.PositionPendingEntry, entity.PositionOpen},
			map[string]interface{}{"status": entity.PositionCancelled, "qty": 0.0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rows != 1 {
			t.Fatalf("expected 1 affected row, got %d", rows)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
	})

	t.Run("lost race yields zero rows", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		repo := NewPositionRepository(mockDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET "status"=$1 WHERE id = $2 AND status IN ($3)`)).
			WithArgs(string(entity.PositionClosed), uint(5), string(entity.PositionOpen)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		rows, err := repo.UpdateTransition(context.Background(), 5,
			[]entity.PositionStatus{entity.PositionOpen},
			map[string]interface{}{"status": entity.PositionClosed})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rows != 0 {
			t.Fatalf("expected 0 affected rows on a lost race, got %d", rows)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
	})
}
