// Package storage хранит изменённые чанки мира в BadgerDB.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world"
	"github.com/annel0/gunpowder/internal/world/block"
)

// ErrNotReady возвращается после Close.
var ErrNotReady = errors.New("хранилище не готово")

// WorldStorage представляет собой хранилище данных мира
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	mutex   sync.RWMutex
	isReady bool
	log     *logging.Logger
}

// ChunkDelta содержит изменения в чанке относительно генератора.
type ChunkDelta struct {
	Coords      vec.Vec2              `json:"coords"`
	BlockDeltas map[string]BlockDelta `json:"blocks"` // Ключ - упакованные координаты "x:y:z"
}

// BlockDelta содержит изменения блока
type BlockDelta struct {
	ID block.BlockID `json:"id"`
}

// NewWorldStorage создает новое хранилище мира
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		enc:     enc,
		dec:     dec,
		isReady: true,
		log:     logging.GetWorldLogger(),
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	ws.dec.Close()
	_ = ws.enc.Close()
	return ws.db.Close()
}

func chunkKey(worldID string, coords vec.Vec2) []byte {
	return []byte(fmt.Sprintf("chunk:%s:%d:%d", worldID, coords.X, coords.Y))
}

func blockKey(p vec.Vec3) string {
	return fmt.Sprintf("%d:%d:%d", p.X, p.Y, p.Z)
}

// SaveChunk дописывает изменения чанка к уже сохранённой дельте и сбрасывает
// их. Шнур пороха сохраняется как воздух: горящие сети не переживают
// перезапуск.
func (ws *WorldStorage) SaveChunk(worldID string, chunk *world.Chunk) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}
	changes := chunk.Changes()
	if len(changes) == 0 {
		return nil
	}

	key := chunkKey(worldID, chunk.Coords)
	err := ws.db.Update(func(txn *badger.Txn) error {
		delta, err := ws.readDelta(txn, key, chunk.Coords)
		if err != nil {
			return err
		}
		for _, p := range changes {
			id := chunk.GetBlock(p)
			if id == block.FuseBlockID {
				id = block.AirBlockID
			}
			delta.BlockDeltas[blockKey(p)] = BlockDelta{ID: id}
		}

		data, err := json.Marshal(delta)
		if err != nil {
			return fmt.Errorf("ошибка сериализации дельты: %w", err)
		}
		return txn.Set(key, ws.enc.EncodeAll(data, nil))
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	chunk.ClearChanges()
	return nil
}

// LoadChunk применяет сохранённую дельту к сгенерированному чанку.
func (ws *WorldStorage) LoadChunk(worldID string, chunk *world.Chunk) error {
	delta, err := ws.LoadDelta(worldID, chunk.Coords)
	if err != nil {
		return err
	}
	ws.applyDelta(chunk, delta)
	return nil
}

// LoadDelta читает дельту чанка. Отсутствие записи — пустая дельта.
func (ws *WorldStorage) LoadDelta(worldID string, coords vec.Vec2) (*ChunkDelta, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	var delta *ChunkDelta
	err := ws.db.View(func(txn *badger.Txn) error {
		var err error
		delta, err = ws.readDelta(txn, chunkKey(worldID, coords), coords)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return delta, nil
}

func (ws *WorldStorage) readDelta(txn *badger.Txn, key []byte, coords vec.Vec2) (*ChunkDelta, error) {
	delta := &ChunkDelta{Coords: coords, BlockDeltas: make(map[string]BlockDelta)}

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return delta, nil
	}
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = item.Value(func(val []byte) error {
		raw, err = ws.dec.DecodeAll(val, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки дельты: %w", err)
	}
	if err := json.Unmarshal(raw, delta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации дельты: %w", err)
	}
	if delta.BlockDeltas == nil {
		delta.BlockDeltas = make(map[string]BlockDelta)
	}
	return delta, nil
}

func (ws *WorldStorage) applyDelta(chunk *world.Chunk, delta *ChunkDelta) {
	for key, bd := range delta.BlockDeltas {
		var p vec.Vec3
		if _, err := fmt.Sscanf(key, "%d:%d:%d", &p.X, &p.Y, &p.Z); err != nil {
			ws.log.Warn("⚠️ Ошибка парсинга ключа '%s': %v", key, err)
			continue
		}
		if p.X < 0 || p.X >= world.ChunkSize || p.Z < 0 || p.Z >= world.ChunkSize {
			ws.log.Warn("⚠️ Некорректные координаты в чанке %v: %s", delta.Coords, key)
			continue
		}
		chunk.ApplyStored(p, bd.ID)
	}
}

// Chunks возвращает число сохранённых чанков мира.
func (ws *WorldStorage) Chunks(worldID string) (int, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return 0, ErrNotReady
	}

	n := 0
	prefix := []byte(fmt.Sprintf("chunk:%s:", worldID))
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
