package store

import (
	"time"

	"go.uber.org/zap"
)

// NoticeLevel описывает важность уведомления для пользователя.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
)

const maxNotices = 50

// Notice описывает кратковременное уведомление для интерфейса.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Notices возвращает последние уведомления, от старых к новым.
func (s *Store) Notices() []Notice {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	return append([]Notice(nil), s.notices...)
}

func (s *Store) success(msg string, fields ...zap.Field) {
	s.logger.Info(msg, fields...)
	s.pushNotice(NoticeSuccess, msg)
}

func (s *Store) warn(msg string, fields ...zap.Field) {
	s.logger.Warn(msg, fields...)
	s.pushNotice(NoticeWarning, msg)
}

func (s *Store) pushNotice(level NoticeLevel, msg string) {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Message: msg, At: s.now()})
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
}
