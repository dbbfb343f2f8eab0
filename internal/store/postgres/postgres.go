// Package postgres implements the store repositories on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crewsync/internal/domain"
	"crewsync/internal/store"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Options configures the connection
type Options struct {
	DSN          string
	QueryTimeout time.Duration
	MaxOpenConns int
	Debug        bool
}

// DB wraps a gorm connection shared by all repositories
type DB struct {
	db      *gorm.DB
	timeout time.Duration
}

// Open connects to PostgreSQL
func Open(opts Options) (*DB, error) {
	level := gormlogger.Silent
	if opts.Debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %w", domain.ErrTransientStore, err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	return &DB{db: db, timeout: opts.QueryTimeout}, nil
}

// Close releases the connection pool
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database is reachable
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return d.wrap(ctx, err)
	}
	return nil
}

// Repositories exposes the database through the store interfaces
func (d *DB) Repositories() store.Repositories {
	return store.Repositories{
		Players:     playerRepository{d},
		Rooms:       roomRepository{d},
		Memberships: membershipRepository{d},
		Messages:    messageRepository{d},
		Votes:       voteRepository{d},
	}
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

// session starts a query bound to ctx and the configured timeout
func (d *DB) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := d.withTimeout(ctx)
	return d.db.WithContext(ctx), cancel
}

// wrap turns a driver error into a domain error. ctx is the caller's context:
// its cancellation is passed through, while the store's own query timeout
// counts as a store failure.
func (d *DB) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
}

type playerRepository struct{ d *DB }

func (r playerRepository) Create(ctx context.Context, player *domain.Player) error {
	db, cancel := r.d.session(ctx)
	defer cancel()

	m := playerModel{ID: player.ID, Username: player.Username, AvatarColor: player.Color}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return r.d.wrap(ctx, err)
	}
	return nil
}

func (r playerRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Player, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	var rows []playerModel
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, r.d.wrap(ctx, err)
	}

	players := make([]domain.Player, 0, len(rows))
	for _, m := range rows {
		players = append(players, domain.Player{ID: m.ID, Username: m.Username, Color: m.AvatarColor, CreatedAt: m.CreatedAt})
	}
	return players, nil
}

type roomRepository struct{ d *DB }

func (r roomRepository) Create(ctx context.Context, room *domain.Room) error {
	db, cancel := r.d.session(ctx)
	defer cancel()

	m := roomModel{
		ID:       room.ID,
		RoomCode: domain.NormalizeCode(room.Code),
		HostID:   room.HostID,
		Status:   string(domain.RoomWaiting),
	}
	err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateRoomCode
		}
		return r.d.wrap(ctx, err)
	}
	return nil
}

func (r roomRepository) find(ctx context.Context, query string, arg string) (*domain.Room, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	var m roomModel
	if err := db.Where(query, arg).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, r.d.wrap(ctx, err)
	}
	return m.toDomain(), nil
}

func (r roomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	return r.find(ctx, "room_code = ?", domain.NormalizeCode(code))
}

func (r roomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	return r.find(ctx, "id = ?", id)
}

func (r roomRepository) Update(ctx context.Context, id string, guard store.RoomGuard, changes store.RoomChanges) (bool, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	q := db.Model(&roomModel{}).Where("id = ?", id)
	if guard.Status != "" {
		q = q.Where("status = ?", string(guard.Status))
	}
	if guard.Round != 0 {
		q = q.Where("round = ?", guard.Round)
	}
	if guard.MeetingOpen != nil {
		q = q.Where("meeting_open = ?", *guard.MeetingOpen)
	}

	values := map[string]interface{}{}
	if changes.Status != nil {
		values["status"] = string(*changes.Status)
	}
	if changes.ImpostorID != nil {
		values["impostor_id"] = nullable(*changes.ImpostorID)
	}
	if changes.Round != nil {
		values["round"] = *changes.Round
	}
	if changes.MeetingOpen != nil {
		values["meeting_open"] = *changes.MeetingOpen
	}
	if changes.LastEjectedID != nil {
		values["last_ejected_id"] = nullable(*changes.LastEjectedID)
	}
	if changes.Winner != nil {
		values["winner"] = nullable(string(*changes.Winner))
	}
	if changes.WinReason != nil {
		values["win_reason"] = nullable(string(*changes.WinReason))
	}
	if len(values) == 0 {
		return false, nil
	}

	res := q.Updates(values)
	if res.Error != nil {
		return false, r.d.wrap(ctx, res.Error)
	}
	return res.RowsAffected == 1, nil
}

type membershipRepository struct{ d *DB }

func (r membershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	db, cancel := r.d.session(ctx)
	defer cancel()

	row := membershipModel{RoomID: m.RoomID, PlayerID: m.PlayerID, IsAlive: true}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return r.d.wrap(ctx, err)
	}
	return nil
}

func (r membershipRepository) Count(ctx context.Context, roomID string) (int, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	var n int64
	if err := db.Model(&membershipModel{}).Where("room_id = ?", roomID).Count(&n).Error; err != nil {
		return 0, r.d.wrap(ctx, err)
	}
	return int(n), nil
}

func (r membershipRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.RosterEntry, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	var rows []rosterRow
	err := db.Table("room_players AS rp").
		Select("rp.player_id, p.username, p.avatar_color, rp.is_alive, rp.tasks_completed, rp.joined_at").
		Joins("JOIN players p ON p.id = rp.player_id").
		Where("rp.room_id = ?", roomID).
		Order("rp.joined_at, rp.player_id").
		Scan(&rows).Error
	if err != nil {
		return nil, r.d.wrap(ctx, err)
	}

	roster := make([]domain.RosterEntry, 0, len(rows))
	for _, row := range rows {
		roster = append(roster, domain.RosterEntry{
			PlayerID:       row.PlayerID,
			Username:       row.Username,
			Color:          row.AvatarColor,
			IsAlive:        row.IsAlive,
			TasksCompleted: row.TasksCompleted,
			JoinedAt:       row.JoinedAt,
		})
	}
	return roster, nil
}

func (r membershipRepository) Eliminate(ctx context.Context, roomID, playerID string) (bool, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	res := db.Model(&membershipModel{}).
		Where("room_id = ? AND player_id = ? AND is_alive", roomID, playerID).
		Update("is_alive", false)
	if res.Error != nil {
		return false, r.d.wrap(ctx, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r membershipRepository) RaiseTasks(ctx context.Context, roomID, playerID string, n int) (bool, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	res := db.Model(&membershipModel{}).
		Where("room_id = ? AND player_id = ? AND tasks_completed < ?", roomID, playerID, n).
		Update("tasks_completed", n)
	if res.Error != nil {
		return false, r.d.wrap(ctx, res.Error)
	}
	return res.RowsAffected == 1, nil
}

type messageRepository struct{ d *DB }

func (r messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	db, cancel := r.d.session(ctx)
	defer cancel()

	m := messageModel{ID: msg.ID, RoomID: msg.RoomID, PlayerID: msg.PlayerID, Content: msg.Content}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return r.d.wrap(ctx, err)
	}
	return nil
}

func (r messageRepository) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	var rows []messageRow
	err := db.Table("messages AS m").
		Select("m.id, m.room_id, m.player_id, p.username, p.avatar_color, m.content, m.created_at").
		Joins("JOIN players p ON p.id = m.player_id").
		Where("m.room_id = ?", roomID).
		Order("m.created_at DESC, m.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, r.d.wrap(ctx, err)
	}

	messages := make([]domain.Message, len(rows))
	for i, row := range rows {
		messages[len(rows)-1-i] = domain.Message{
			ID:        row.ID,
			RoomID:    row.RoomID,
			PlayerID:  row.PlayerID,
			Username:  row.Username,
			Color:     row.AvatarColor,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
	}
	return messages, nil
}

type voteRepository struct{ d *DB }

func (r voteRepository) Create(ctx context.Context, vote *domain.Vote) error {
	db, cancel := r.d.session(ctx)
	defer cancel()

	m := voteModel{
		ID:        vote.ID,
		RoomID:    vote.RoomID,
		VoterID:   vote.VoterID,
		SuspectID: nullable(vote.SuspectID),
		Round:     vote.Round,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return r.d.wrap(ctx, err)
	}
	return nil
}

func (r voteRepository) ListByRound(ctx context.Context, roomID string, round int) ([]domain.Vote, error) {
	db, cancel := r.d.session(ctx)
	defer cancel()

	var rows []voteModel
	err := db.Where("room_id = ? AND round = ?", roomID, round).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, r.d.wrap(ctx, err)
	}

	votes := make([]domain.Vote, 0, len(rows))
	for _, m := range rows {
		votes = append(votes, m.toDomain())
	}
	return votes, nil
}
