package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"DipHunter/internal/model"
	"DipHunter/internal/notifier"
	"DipHunter/internal/store"
)

const helpText = "Available commands:\n" +
	"/hunters - list your hunters\n" +
	"/status <id> - latest indicator snapshot of a hunter\n" +
	"/run <id> - run a hunter cycle now"

// HandleCommand processes a chat command and returns the reply. Users only
// see their own hunters; the admin chat sees all of them.
func (s *Scheduler) HandleCommand(ctx context.Context, chatID, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return helpText
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	admin := s.AdminChatID != "" && chatID == s.AdminChatID
	user, err := s.userByChat(ctx, chatID)
	if err != nil {
		s.logger.Error("resolve chat user", zap.String("chat_id", chatID), zap.Error(err))
		return "Internal error, try again later."
	}
	if user == nil && !admin {
		return "This chat is not linked to any user."
	}

	switch cmd {
	case "/hunters":
		hunters, err := s.visibleHunters(ctx, user, admin)
		if err != nil {
			s.logger.Error("list hunters", zap.Error(err))
			return "Could not load hunters."
		}
		return notifier.FormatHunters(hunters)
	case "/status", "/run":
		h, reply := s.authorizedHunter(ctx, args, user, admin)
		if h == nil {
			return reply
		}
		if cmd == "/status" {
			in, err := s.Runner.Inputs(ctx, h.ID)
			if err != nil {
				return fmt.Sprintf("No snapshot for hunter %d: %v", h.ID, err)
			}
			return notifier.FormatInputs(in)
		}
		in, err := s.Runner.Trigger(ctx, h.ID)
		if err != nil {
			return fmt.Sprintf("Hunter %d run failed: %v", h.ID, err)
		}
		return notifier.FormatInputs(in)
	default:
		return helpText
	}
}

func (s *Scheduler) userByChat(ctx context.Context, chatID string) (*model.User, error) {
	users, err := s.Store.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.TelegramChatID == chatID {
			return u, nil
		}
	}
	return nil, nil
}

func (s *Scheduler) visibleHunters(ctx context.Context, user *model.User, admin bool) ([]*model.Hunter, error) {
	if !admin {
		return s.Store.HuntersByUser(ctx, user.ID)
	}
	users, err := s.Store.Users(ctx)
	if err != nil {
		return nil, err
	}
	var all []*model.Hunter
	for _, u := range users {
		hs, err := s.Store.HuntersByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, hs...)
	}
	return all, nil
}

func (s *Scheduler) authorizedHunter(ctx context.Context, args []string, user *model.User, admin bool) (*model.Hunter, string) {
	if len(args) != 1 {
		return nil, "Usage: /status <id> or /run <id>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return nil, "Hunter id must be a positive number."
	}
	h, err := s.Store.Hunter(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !admin && h.UserID != user.ID) {
		return nil, fmt.Sprintf("Hunter %d not found.", id)
	}
	if err != nil {
		s.logger.Error("load hunter", zap.Int64("hunter_id", id), zap.Error(err))
		return nil, "Could not load hunter."
	}
	return h, ""
}
