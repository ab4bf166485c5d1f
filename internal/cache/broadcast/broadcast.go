// broadcast рассылает события инвалидации между инстансами сервиса.
// Каждый инстанс держит свой кэш в памяти; событие несёт ровно столько данных
// о записи, сколько нужно, чтобы получатель повторил локальную инвалидацию.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
)

// Type: вид записи, вызвавшей инвалидацию.
type Type string

const (
	TypeWrite     Type = "write"
	TypeReadState Type = "read_state"
	TypeHide      Type = "hide"
	TypeDelete    Type = "delete"
)

// Event: событие инвалидации.
// Для write/delete заполнены Lon/Lat, OwnerID и RecipientID;
// для read_state/hide: UserID, чьи «входящие» устарели.
type Event struct {
	Origin      string  `json:"origin"`
	Type        Type    `json:"type"`
	Lon         float64 `json:"lon,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	OwnerID     string  `json:"owner_id,omitempty"`
	RecipientID string  `json:"recipient_id,omitempty"`
	UserID      string  `json:"user_id,omitempty"`
}

// ApplyFunc применяет событие другого инстанса к локальному кэшу.
type ApplyFunc func(ctx context.Context, ev Event)

// Broadcaster публикует локальные события и доставляет чужие.
type Broadcaster interface {
	// Publish отправляет событие остальным инстансам. Origin выставляется реализацией.
	Publish(ctx context.Context, ev Event) error
	// Run блокируется до отмены ctx, вызывая apply для событий других инстансов.
	Run(ctx context.Context, apply ApplyFunc) error
	// Close освобождает соединения.
	Close() error
}

func encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("broadcast: encode: %w", err)
	}

	return b, nil
}

func decode(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("broadcast: decode: %w", err)
	}

	if ev.Origin == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("broadcast: decode: missing origin or type")
	}

	return ev, nil
}

// Nop: рассылка отключена (однопроцессная конфигурация).
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Run(ctx context.Context, _ ApplyFunc) error {
	<-ctx.Done()
	return nil
}

func (Nop) Close() error { return nil }
