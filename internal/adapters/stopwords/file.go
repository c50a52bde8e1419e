package stopwords

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"wa-chat-insights/internal/domain"
)

// FileProvider загружает стоп-слова из текстового файла: токены,
// разделённые пробелами или переводами строк. Отсутствие файла — ошибка
// ресурса, тихого отката к пустому списку нет.
type FileProvider struct {
	path string

	mu     sync.Mutex
	cached domain.StopWordSet
}

var _ domain.StopWordsProvider = (*FileProvider)(nil)

// NewFile создаёт провайдер по пути к файлу.
func NewFile(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Load читает и запоминает множество стоп-слов.
func (p *FileProvider) Load() (domain.StopWordSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("чтение списка стоп-слов %s: %w", p.path, err)
	}

	set := make(domain.StopWordSet)
	for _, token := range strings.Fields(string(data)) {
		set[strings.ToLower(token)] = struct{}{}
	}
	p.cached = set
	return set, nil
}
