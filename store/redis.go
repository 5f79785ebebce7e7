package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"canvastrmnl/errors"
)

// Redis is a Store backed by redis hashes:
//
//	authToken:<token>       used, createdAt
//	consumer:<consumerId>   createdAt
//	trmnl:<trmnlId>         consumerId, trmnlId, name, email, settingsId
//	canvas:<consumerId>     server, token
type Redis struct {
	Client *redis.Client
	Now    func() time.Time
}

// OpenRedis connects to a redis server and checks that it answers.
func OpenRedis(ctx context.Context, addr, pwd string, idx int) (*Redis, error) {
	if idx < 0 || idx > 15 {
		return nil, errors.NewError("store.OpenRedis", "redis db index must be between 0 and 15", errors.ErrInitFailed)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pwd,
		DB:       idx,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewError("store.OpenRedis", "cannot reach redis at "+addr, err)
	}
	return &Redis{Client: client, Now: time.Now}, nil
}

// Attempts at an optimistic transaction before giving up.
const maxWatchRetries = 5

func authTokenKey(token string) string { return "authToken:" + token }
func consumerKey(id string) string     { return "consumer:" + id }
func trmnlKey(trmnlID string) string   { return "trmnl:" + trmnlID }
func canvasKey(id string) string       { return "canvas:" + id }

func (r *Redis) AddAuthToken(ctx context.Context, token string) error {
	key := authTokenKey(token)
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "createdAt", millis(r.Now()))
		pipe.HSetNX(ctx, key, "used", "0")
		return nil
	})
	if err != nil {
		return errors.NewError("store.AddAuthToken", "write failed", err)
	}
	return nil
}

func (r *Redis) AuthTokenExists(ctx context.Context, token string) (bool, error) {
	n, err := r.Client.Exists(ctx, authTokenKey(token)).Result()
	if err != nil {
		return false, errors.NewError("store.AuthTokenExists", "query failed", err)
	}
	return n == 1, nil
}

func (r *Redis) InstallConsumer(ctx context.Context, data TrmnlData, token string) (Consumer, error) {
	tKey := trmnlKey(data.TrmnlID)
	aKey := authTokenKey(token)
	c := Consumer{ID: uuid.NewString(), CreatedAt: fromMillis(millis(r.Now()))}

	install := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, tKey).Result()
		if err != nil {
			return err
		}
		if n != 0 {
			return ErrConsumerExists
		}
		tokenKnown, err := tx.Exists(ctx, aKey).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, consumerKey(c.ID), "createdAt", millis(c.CreatedAt))
			pipe.HSet(ctx, tKey, map[string]any{
				"consumerId": c.ID,
				"trmnlId":    data.TrmnlID,
				"name":       data.Name,
				"email":      data.Email,
				"settingsId": data.SettingsID,
			})
			if tokenKnown == 1 {
				pipe.HSet(ctx, aKey, "used", "1")
			}
			return nil
		})
		return err
	}

	// A watched key changed under us, most likely a concurrent install of the
	// same user. Retry so the existence check sees it.
	var err error
	for range maxWatchRetries {
		err = r.Client.Watch(ctx, install, tKey, aKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	if err != nil {
		return Consumer{}, errors.NewError("store.InstallConsumer", data.TrmnlID, err)
	}
	return c, nil
}

func (r *Redis) UninstallConsumer(ctx context.Context, trmnlID, token string) error {
	tKey := trmnlKey(trmnlID)

	err := r.Client.Watch(ctx, func(tx *redis.Tx) error {
		id, err := tx.HGet(ctx, tKey, "consumerId").Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, canvasKey(id), tKey, consumerKey(id), authTokenKey(token))
			return nil
		})
		return err
	}, tKey)

	if err != nil {
		return errors.NewError("store.UninstallConsumer", trmnlID, err)
	}
	return nil
}

func (r *Redis) TrmnlDataByTrmnlID(ctx context.Context, trmnlID string) (TrmnlData, error) {
	res, err := r.Client.HGetAll(ctx, trmnlKey(trmnlID)).Result()
	if err != nil {
		return TrmnlData{}, errors.NewError("store.TrmnlDataByTrmnlID", "query failed", err)
	}
	if len(res) == 0 {
		return TrmnlData{}, errors.NewError("store.TrmnlDataByTrmnlID", trmnlID, ErrNotFound)
	}

	settingsID, err := strconv.ParseInt(res["settingsId"], 10, 64)
	if err != nil {
		return TrmnlData{}, errors.NewError("store.TrmnlDataByTrmnlID", "corrupt settingsId", err)
	}
	return TrmnlData{
		ConsumerID: res["consumerId"],
		TrmnlID:    res["trmnlId"],
		Name:       res["name"],
		Email:      res["email"],
		SettingsID: settingsID,
	}, nil
}

func (r *Redis) UpdateTrmnlName(ctx context.Context, trmnlID, name string) error {
	key := trmnlKey(trmnlID)
	err := r.Client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "name", name)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return errors.NewError("store.UpdateTrmnlName", trmnlID, err)
	}
	return nil
}

func (r *Redis) CanvasCredentials(ctx context.Context, consumerID string) (CanvasCredentials, error) {
	res, err := r.Client.HGetAll(ctx, canvasKey(consumerID)).Result()
	if err != nil {
		return CanvasCredentials{}, errors.NewError("store.CanvasCredentials", "query failed", err)
	}
	if len(res) == 0 {
		return CanvasCredentials{}, errors.NewError("store.CanvasCredentials", consumerID, ErrNotFound)
	}
	return CanvasCredentials{
		ConsumerID:      consumerID,
		EncryptedServer: res["server"],
		EncryptedToken:  res["token"],
	}, nil
}

func (r *Redis) PutCanvasCredentials(ctx context.Context, creds CanvasCredentials) error {
	cKey := consumerKey(creds.ConsumerID)
	err := r.Client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, cKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, canvasKey(creds.ConsumerID), map[string]any{
				"server": creds.EncryptedServer,
				"token":  creds.EncryptedToken,
			})
			return nil
		})
		return err
	}, cKey)
	if err != nil {
		return errors.NewError("store.PutCanvasCredentials", creds.ConsumerID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
