package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"crash-casino-backend/internal/config"
	"crash-casino-backend/internal/models"
)

// RedisStore implements Store on redis. Every mutating operation runs as a
// single Lua script so the read-modify-write on a user's balance or a bet's
// status is atomic at the store boundary.
type RedisStore struct {
	client          *redis.Client
	startingBalance int64
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:          client,
		startingBalance: cfg.StartingBalance,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) GetBalance(ctx context.Context, userID int64) (*models.UserBalance, error) {
	key := fmt.Sprintf(KeyBalance, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		balance := &models.UserBalance{
			UserID:  userID,
			Balance: s.startingBalance,
		}
		encoded, err := json.Marshal(balance)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal balance: %w", err)
		}
		if err := s.client.SetNX(ctx, key, encoded, 0).Err(); err != nil {
			return nil, fmt.Errorf("failed to create balance: %w", err)
		}
		return balance, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	var balance models.UserBalance
	if err := json.Unmarshal([]byte(data), &balance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balance: %w", err)
	}

	return &balance, nil
}

var debitForBetScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local starting = tonumber(ARGV[2])
	local userID = tonumber(ARGV[3])

	local data = redis.call("GET", key)
	local account
	if not data then
		account = {user_id = userID, balance = starting, total_wagered = 0, total_won = 0, games_played = 0}
	else
		account = cjson.decode(data)
	end

	if account.balance < amount then
		return redis.error_reply("insufficient balance")
	end

	account.balance = account.balance - amount
	account.total_wagered = account.total_wagered + amount
	account.games_played = account.games_played + 1

	redis.call("SET", key, cjson.encode(account))

	return account.balance
`)

func (s *RedisStore) DebitForBet(ctx context.Context, userID int64, amount int64) (int64, error) {
	key := fmt.Sprintf(KeyBalance, userID)
	newBalance, err := debitForBetScript.Run(ctx, s.client, []string{key}, amount, s.startingBalance, userID).Int64()
	if err != nil {
		return 0, mapRedisError(err, "failed to debit balance")
	}
	return newBalance, nil
}

var creditPayoutScript = redis.NewScript(`
	local key = KEYS[1]
	local payout = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("account not found")
	end

	local account = cjson.decode(data)
	account.balance = account.balance + payout
	account.total_won = account.total_won + payout

	redis.call("SET", key, cjson.encode(account))

	return account.balance
`)

func (s *RedisStore) CreditPayout(ctx context.Context, userID int64, payout int64) (int64, error) {
	key := fmt.Sprintf(KeyBalance, userID)
	newBalance, err := creditPayoutScript.Run(ctx, s.client, []string{key}, payout).Int64()
	if err != nil {
		return 0, mapRedisError(err, "failed to credit payout")
	}
	return newBalance, nil
}

var adjustBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])
	local starting = tonumber(ARGV[2])
	local userID = tonumber(ARGV[3])

	local data = redis.call("GET", key)
	local account
	if not data then
		account = {user_id = userID, balance = starting, total_wagered = 0, total_won = 0, games_played = 0}
	else
		account = cjson.decode(data)
	end

	if account.balance + delta < 0 then
		return redis.error_reply("insufficient balance")
	end

	account.balance = account.balance + delta
	redis.call("SET", key, cjson.encode(account))

	return account.balance
`)

func (s *RedisStore) AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	key := fmt.Sprintf(KeyBalance, userID)
	newBalance, err := adjustBalanceScript.Run(ctx, s.client, []string{key}, delta, s.startingBalance, userID).Int64()
	if err != nil {
		return 0, mapRedisError(err, "failed to adjust balance")
	}
	return newBalance, nil
}

var insertBetScript = redis.NewScript(`
	local betKey = KEYS[1]
	local userBetsKey = KEYS[2]
	local data = ARGV[1]
	local betID = ARGV[2]
	local score = tonumber(ARGV[3])
	local ttlMs = tonumber(ARGV[4])

	redis.call("SET", betKey, data, "PX", ttlMs)
	redis.call("ZADD", userBetsKey, score, betID)
	redis.call("PEXPIRE", userBetsKey, ttlMs)

	return "OK"
`)

func (s *RedisStore) InsertBet(ctx context.Context, bet *models.Bet) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("failed to marshal bet: %w", err)
	}

	betKey := fmt.Sprintf(KeyBet, bet.ID)
	userBetsKey := fmt.Sprintf(KeyUserBets, bet.UserID)

	if err := insertBetScript.Run(ctx, s.client, []string{betKey, userBetsKey},
		data, bet.ID, float64(bet.CreatedAt.UnixNano()), TTLBet.Milliseconds()).Err(); err != nil {
		return mapRedisError(err, "failed to save bet")
	}

	return nil
}

func (s *RedisStore) GetBet(ctx context.Context, betID string) (*models.Bet, error) {
	key := fmt.Sprintf(KeyBet, betID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, models.NewGameError(models.KindInvalidInput, "bet not found: %s", betID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}

	var bet models.Bet
	if err := json.Unmarshal([]byte(data), &bet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bet: %w", err)
	}

	return &bet, nil
}

func (s *RedisStore) DeleteBet(ctx context.Context, betID string) error {
	bet, err := s.GetBet(ctx, betID)
	if err != nil {
		// Deleting a bet that is already gone is a success; any other
		// failure must surface so a compensating delete is never reported
		// as confirmed when it was not.
		if errors.Is(err, models.ErrInvalidInput) {
			return nil
		}
		return err
	}

	if err := s.client.Del(ctx, fmt.Sprintf(KeyBet, betID)).Err(); err != nil {
		return fmt.Errorf("failed to delete bet: %w", err)
	}
	s.client.ZRem(ctx, fmt.Sprintf(KeyUserBets, bet.UserID), betID)

	return nil
}

var settleBetScript = redis.NewScript(`
	local key = KEYS[1]
	local status = ARGV[1]
	local multiplier = tonumber(ARGV[2])
	local settledAt = ARGV[3]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("bet not found")
	end

	local bet = cjson.decode(data)

	if bet.status ~= "active" then
		return {0, data}
	end

	bet.status = status
	bet.settled_at = settledAt
	if status == "cashed_out" then
		bet.cashout_multiplier = multiplier
		bet.payout = math.floor(bet.amount * multiplier)
		bet.profit = bet.payout - bet.amount
	else
		bet.payout = 0
		bet.profit = -bet.amount
	end

	local updated = cjson.encode(bet)
	redis.call("SET", key, updated, "KEEPTTL")

	return {1, updated}
`)

func (s *RedisStore) SettleBet(ctx context.Context, betID string, status models.BetStatus, multiplier float64) (*models.Bet, bool, error) {
	key := fmt.Sprintf(KeyBet, betID)
	settledAt := time.Now().UTC().Format(time.RFC3339Nano)

	result, err := settleBetScript.Run(ctx, s.client, []string{key}, string(status), multiplier, settledAt).Slice()
	if err != nil {
		return nil, false, mapRedisError(err, "failed to settle bet")
	}
	if len(result) != 2 {
		return nil, false, fmt.Errorf("unexpected settle result: %v", result)
	}

	transitioned, _ := result[0].(int64)
	data, _ := result[1].(string)

	var bet models.Bet
	if err := json.Unmarshal([]byte(data), &bet); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal settled bet: %w", err)
	}

	return &bet, transitioned == 1, nil
}

var reopenBetScript = redis.NewScript(`
	local key = KEYS[1]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("bet not found")
	end

	local bet = cjson.decode(data)
	bet.status = "active"
	bet.cashout_multiplier = 0
	bet.payout = 0
	bet.profit = -bet.amount
	bet.settled_at = "0001-01-01T00:00:00Z"

	redis.call("SET", key, cjson.encode(bet), "KEEPTTL")

	return "OK"
`)

func (s *RedisStore) ReopenBet(ctx context.Context, betID string) error {
	key := fmt.Sprintf(KeyBet, betID)
	if err := reopenBetScript.Run(ctx, s.client, []string{key}).Err(); err != nil {
		return mapRedisError(err, "failed to reopen bet")
	}
	return nil
}

func (s *RedisStore) ListBetsByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	userBetsKey := fmt.Sprintf(KeyUserBets, userID)

	betIDs, err := s.client.ZRevRange(ctx, userBetsKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bet ids: %w", err)
	}

	bets := make([]*models.Bet, 0, len(betIDs))
	for _, betID := range betIDs {
		bet, err := s.GetBet(ctx, betID)
		if err != nil {
			continue
		}
		bets = append(bets, bet)
	}

	return bets, nil
}

func (s *RedisStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	txKey := fmt.Sprintf(KeyTransaction, tx.ID)
	if err := s.client.Set(ctx, txKey, data, TTLTransaction).Err(); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, tx.UserID)
	if err := s.client.ZAdd(ctx, userTxKey, redis.Z{
		Score:  float64(tx.CreatedAt.UnixNano()),
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index transaction: %w", err)
	}

	// Keep only the last 100 transactions per user.
	s.client.ZRemRangeByRank(ctx, userTxKey, 0, -101)

	return nil
}

// mapRedisError turns script error replies into the typed taxonomy.
func mapRedisError(err error, msg string) error {
	text := err.Error()
	switch {
	case strings.Contains(text, "insufficient balance"):
		return models.ErrInsufficientFunds
	case strings.Contains(text, "bet not found"), strings.Contains(text, "account not found"):
		return models.NewGameError(models.KindInvalidInput, "%s", text)
	default:
		return models.NewGameError(models.KindLedgerUnavailable, "%s: %v", msg, err)
	}
}
