// Package changefeed доставляет уведомления «сущность изменилась» от хранилища к подписчикам.
// Уведомление не несёт данных: получатель всегда перечитывает сущность целиком.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
)

// Операции в уведомлении.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ErrDropped - соединение с брокером оборвалось.
var ErrDropped = errors.New("соединение с лентой изменений потеряно")

// Notice - сигнал об изменении. Op и ID носят справочный характер.
type Notice struct {
	Entity string `json:"entity"`
	Op     string `json:"op"`
	ID     string `json:"id,omitempty"`
}

// Transport слушает ленту одной сущности.
// Listen блокируется, пока жив ctx или соединение. ready вызывается, когда подписка установлена.
// Возврат ctx.Err() означает штатную отписку, любая другая ошибка - обрыв.
type Transport interface {
	Listen(ctx context.Context, entity string, ready func(), notify func(Notice)) error
}

// Publisher отправляет уведомление всем слушателям сущности.
type Publisher interface {
	Publish(ctx context.Context, n Notice) error
}

// Channel - имя канала (или exchange) для сущности.
func Channel(entity string) string {
	return entity + "_changes"
}

func encode(n Notice) ([]byte, error) {
	return json.Marshal(n)
}

// decode не падает на мусоре: уведомление всё равно означает «перечитай».
func decode(entity string, payload []byte) Notice {
	var n Notice
	if err := json.Unmarshal(payload, &n); err != nil || n.Entity == "" {
		return Notice{Entity: entity}
	}
	return n
}

// NopPublisher ничего не отправляет.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Notice) error { return nil }
