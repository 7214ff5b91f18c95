package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

const flashKey = "_flashes"

// Flash keeps one-shot messages in the session until the next page render.
type Flash struct {
	store *session.Store
}

func NewFlash(store *session.Store) *Flash {
	return &Flash{store: store}
}

func (f *Flash) Add(c *fiber.Ctx, messages ...string) error {
	sess, err := f.store.Get(c)
	if err != nil {
		return err
	}
	all := messages
	if prev, ok := sess.Get(flashKey).(string); ok && prev != "" {
		all = append(strings.Split(prev, "\n"), messages...)
	}
	sess.Set(flashKey, strings.Join(all, "\n"))
	return sess.Save()
}

// Pop returns the pending messages and clears them.
func (f *Flash) Pop(c *fiber.Ctx) []string {
	sess, err := f.store.Get(c)
	if err != nil {
		return nil
	}
	prev, ok := sess.Get(flashKey).(string)
	if !ok || prev == "" {
		return nil
	}
	sess.Delete(flashKey)
	if err := sess.Save(); err != nil {
		return nil
	}
	return strings.Split(prev, "\n")
}
