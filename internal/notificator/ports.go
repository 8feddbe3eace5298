package notificator

import "context"

type Notificator interface {
	// Notify — сообщение об ошибке админу. Best effort: неудачная
	// отправка только логируется.
	Notify(ctx context.Context, err error, details string)
}
