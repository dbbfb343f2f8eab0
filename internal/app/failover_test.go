package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crewsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTransport is a testify mock of Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Session, error) {
	args := m.Called(ctx, req)
	sess, _ := args.Get(0).(*Session)
	return sess, args.Error(1)
}

func (m *MockTransport) JoinRoom(ctx context.Context, req JoinRoomRequest) (*Session, error) {
	args := m.Called(ctx, req)
	sess, _ := args.Get(0).(*Session)
	return sess, args.Error(1)
}

func (m *MockTransport) Snapshot(ctx context.Context, code string) (*domain.Snapshot, error) {
	args := m.Called(ctx, code)
	snap, _ := args.Get(0).(*domain.Snapshot)
	return snap, args.Error(1)
}

func (m *MockTransport) StartGame(ctx context.Context, code, playerID string) (*domain.Room, error) {
	args := m.Called(ctx, code, playerID)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *MockTransport) CallEmergency(ctx context.Context, code, playerID string) (*domain.Room, error) {
	args := m.Called(ctx, code, playerID)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *MockTransport) SubmitVote(ctx context.Context, code string, req VoteRequest) error {
	return m.Called(ctx, code, req).Error(0)
}

func (m *MockTransport) ReportTasks(ctx context.Context, code, playerID string, completed int) error {
	return m.Called(ctx, code, playerID, completed).Error(0)
}

func (m *MockTransport) SendMessage(ctx context.Context, code string, req MessageRequest) (*domain.Message, error) {
	args := m.Called(ctx, code, req)
	msg, _ := args.Get(0).(*domain.Message)
	return msg, args.Error(1)
}

func (m *MockTransport) Messages(ctx context.Context, code string) ([]domain.Message, error) {
	args := m.Called(ctx, code)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *MockTransport) Settle(ctx context.Context, code string) (*SettleResult, error) {
	args := m.Called(ctx, code)
	res, _ := args.Get(0).(*SettleResult)
	return res, args.Error(1)
}

var errUnavailable = fmt.Errorf("%w: connection refused", domain.ErrTransientStore)

func TestFailoverFallsBackOnTransientError(t *testing.T) {
	ctx := context.Background()
	primary := new(MockTransport)
	secondary := new(MockTransport)
	f := NewFailover(primary, secondary, testLogger())

	var sent []VoteRequest
	record := func(args mock.Arguments) { sent = append(sent, args.Get(2).(VoteRequest)) }
	primary.On("SubmitVote", ctx, "ABCDEF", mock.Anything).Run(record).Return(errUnavailable).Once()
	secondary.On("SubmitVote", ctx, "ABCDEF", mock.Anything).Run(record).Return(nil).Once()

	err := f.SubmitVote(ctx, "ABCDEF", VoteRequest{VoterID: "v", SuspectID: "s", Round: 1})
	require.NoError(t, err)

	require.Len(t, sent, 2)
	assert.NotEmpty(t, sent[0].VoteID)
	assert.Equal(t, sent[0], sent[1], "retry must reuse the same vote id")
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}

func TestFailoverKeepsDomainErrors(t *testing.T) {
	ctx := context.Background()
	primary := new(MockTransport)
	secondary := new(MockTransport)
	f := NewFailover(primary, secondary, testLogger())

	primary.On("StartGame", ctx, "ABCDEF", "host").Return(nil, domain.ErrInsufficientPlayers).Once()

	_, err := f.StartGame(ctx, "ABCDEF", "host")
	assert.ErrorIs(t, err, domain.ErrInsufficientPlayers)
	secondary.AssertNotCalled(t, "StartGame", mock.Anything, mock.Anything, mock.Anything)
}

func TestFailoverBothDown(t *testing.T) {
	ctx := context.Background()
	primary := new(MockTransport)
	secondary := new(MockTransport)
	f := NewFailover(primary, secondary, testLogger())

	primary.On("Snapshot", ctx, "ABCDEF").Return(nil, errUnavailable).Once()
	secondary.On("Snapshot", ctx, "ABCDEF").Return(nil, errors.Join(domain.ErrTransientStore, errors.New("timeout"))).Once()

	_, err := f.Snapshot(ctx, "ABCDEF")
	assert.ErrorIs(t, err, domain.ErrTransientStore)
}

func TestFailoverCreateRoomIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t, WithCodeGenerator(codes("ABCDEF", "GHIJKL")))

	// The primary writes the room and then loses its connection before
	// answering, so the secondary replays the same request.
	primary := new(MockTransport)
	primary.On("CreateRoom", ctx, mock.Anything).Return(nil, errUnavailable).Run(func(args mock.Arguments) {
		_, err := svc.CreateRoom(ctx, args.Get(1).(CreateRoomRequest))
		require.NoError(t, err)
	}).Once()

	f := NewFailover(primary, svc, testLogger())
	sess, err := f.CreateRoom(ctx, CreateRoomRequest{Username: "host"})
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", sess.Room.Code)

	_, err = mem.Repositories().Rooms.FindByCode(ctx, "GHIJKL")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	roster, err := svc.Roster(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}
