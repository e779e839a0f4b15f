package mockserver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type menuItem struct {
	name  string
	price int // VND
	tags  []string
}

var menu = []menuItem{
	{"Phở bò", 55000, []string{"pho", "phở", "beef", "bò", "soup"}},
	{"Bún chả", 50000, []string{"bun", "bún", "pork", "chả", "grill"}},
	{"Cơm tấm", 45000, []string{"com", "cơm", "rice", "tấm"}},
	{"Bánh mì", 25000, []string{"banh", "bánh", "mì", "sandwich", "bread"}},
	{"Gỏi cuốn", 35000, []string{"goi", "gỏi", "roll", "cuốn", "vegetarian", "chay"}},
}

type conversation struct {
	owner string
	turns int
}

// Conversations keeps per-session turn counts so replies show server-side continuity.
type Conversations struct {
	mu       sync.Mutex
	sessions map[string]*conversation
}

// NewConversations creates an empty conversation table.
func NewConversations() *Conversations {
	return &Conversations{sessions: make(map[string]*conversation)}
}

// Reply records a turn for sessionID (a new id is minted when empty) and returns a canned
// food-assistant answer in Markdown.
func (c *Conversations) Reply(owner, sessionID, message string) (string, string) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	c.mu.Lock()
	conv, ok := c.sessions[sessionID]
	if !ok {
		conv = &conversation{owner: owner}
		c.sessions[sessionID] = conv
	}
	conv.turns++
	turn := conv.turns
	c.mu.Unlock()

	return sessionID, answer(turn, message)
}

// Turns returns how many messages sessionID has received.
func (c *Conversations) Turns(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv, ok := c.sessions[sessionID]; ok {
		return conv.turns
	}
	return 0
}

func answer(turn int, message string) string {
	lower := strings.ToLower(message)

	if strings.Contains(lower, "menu") || strings.Contains(lower, "thực đơn") {
		var b strings.Builder
		b.WriteString("Here is today's **menu**:\n\n")
		for _, item := range menu {
			fmt.Fprintf(&b, "- %s: %s\n", item.name, formatPrice(item.price))
		}
		return b.String()
	}

	for _, item := range menu {
		for _, tag := range item.tags {
			if strings.Contains(lower, tag) {
				return fmt.Sprintf("**%s** costs %s. Would you like to order it?", item.name, formatPrice(item.price))
			}
		}
	}

	if turn == 1 {
		return "Welcome! Ask me for the *menu* or name a dish you are craving."
	}
	return fmt.Sprintf("I'm not sure about %q yet. Try asking for the *menu*. (message %d in this conversation)", message, turn)
}

func formatPrice(vnd int) string {
	s := fmt.Sprintf("%d", vnd)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String() + "₫"
}
