package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"whirl/domain"
	"whirl/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const historyPrefix = "history:"

// HistoryRepository stores channel traffic in BadgerDB.
type HistoryRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger) HistoryRepository {
	return HistoryRepository{db: db, log: log, now: time.Now}
}

// historyKey is formatted as "history:{channel}:{timestamp_padded}:{uuid}".
// The 19-digit padding keeps lexicographical order chronological and the
// UUID separates two records written in the same nanosecond.
func historyKey(channel string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", historyPrefix, channel, at.UnixNano(), id))
}

func channelPrefix(channel string) []byte {
	return []byte(historyPrefix + channel + ":")
}

// Append persists one record. A record without a timestamp is stamped now.
func (h HistoryRepository) Append(record domain.HistoryRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = h.now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	bytes, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	key := historyKey(record.Channel, record.CreatedAt, uuid.New())
	err = h.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return errors.ErrHistoryConflict
		}
		return txn.Set(key, bytes)
	})
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrHistoryConflict):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}

// Recent returns the newest limit records of channel, oldest first.
// The scan walks backwards from the end of the channel's key range.
func (h HistoryRepository) Recent(channel string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	var values [][]byte
	err := h.db.View(func(txn *badger.Txn) error {
		prefix := channelPrefix(channel)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Past the newest possible key: history:{channel}:9999999999999999999
		seekKey := append(slices.Clone(prefix), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(values) == limit {
				h.log.Debug(fmt.Sprintf("Maximum of %d records reached", limit), "channel", channel)
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	records := make([]domain.HistoryRecord, 0, len(values))
	for _, value := range slices.Backward(values) {
		record, err := decodeRecord(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Each visits every stored record in key order, channel by channel.
func (h HistoryRepository) Each(visit func(key string, record domain.HistoryRecord) error) error {
	return h.db.View(func(txn *badger.Txn) error {
		prefix := []byte(historyPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			record, err := decodeRecord(value)
			if err != nil {
				return fmt.Errorf("key %s: %w", item.Key(), err)
			}
			if err = visit(string(item.Key()), record); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeRecord(record domain.HistoryRecord) ([]byte, error) {
	value, err := structpb.NewStruct(map[string]any{
		"user":       record.User,
		"type":       int(record.Type),
		"channel":    record.Channel,
		"message":    record.Message,
		"created_at": record.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(value)
}

func decodeRecord(bytes []byte) (domain.HistoryRecord, error) {
	var value structpb.Struct
	if err := proto.Unmarshal(bytes, &value); err != nil {
		return domain.HistoryRecord{}, err
	}
	fields := value.GetFields()
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"].GetStringValue())
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	return domain.HistoryRecord{
		User:      fields["user"].GetStringValue(),
		Type:      domain.PayloadType(int(fields["type"].GetNumberValue())),
		Channel:   fields["channel"].GetStringValue(),
		Message:   fields["message"].GetStringValue(),
		CreatedAt: createdAt.UTC(),
	}, nil
}
