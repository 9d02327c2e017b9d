package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizmaster-service/internal/domain"
)

// QuizStore is the backing store wrapped by QuizCache. It has the shape of app.QuizRepository.
type QuizStore interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	GetQuiz(ctx context.Context, id string) (domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
}

// QuizCache is a read-through cache for GetQuiz with TTL to avoid repeated store hits.
// Writes go to the store and drop the cached entry.
type QuizCache struct {
	store QuizStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu      sync.RWMutex
	rnd     *rand.Rand
	entries map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(store QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		store:   store,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]cachedQuiz),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(id); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if quiz, ok := c.lookup(id); ok {
			return quiz, nil
		}
		quiz, err := c.store.GetQuiz(ctx, id)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.put(quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz).Clone(), nil
}

// ListQuizzes always reads the store and refreshes the cached entries.
func (c *QuizCache) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := c.store.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	for _, q := range quizzes {
		c.put(q)
	}
	return quizzes, nil
}

func (c *QuizCache) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	saved, err := c.store.CreateQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	c.Invalidate(saved.ID)
	return saved, nil
}

func (c *QuizCache) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	c.Invalidate(quiz.ID)
	saved, err := c.store.UpdateQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	c.Invalidate(saved.ID)
	return saved, nil
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, id string) error {
	c.Invalidate(id)
	return c.store.DeleteQuiz(ctx, id)
}

// Invalidate drops a cached quiz so the next read goes to the store.
func (c *QuizCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	c.sf.Forget(id)
}

func (c *QuizCache) lookup(id string) (domain.Quiz, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Quiz{}, false
	}
	return entry.quiz.Clone(), true
}

func (c *QuizCache) put(quiz domain.Quiz) {
	now := c.clock()
	c.mu.Lock()
	c.entries[quiz.ID] = cachedQuiz{quiz: quiz.Clone(), expiresAt: now.Add(c.ttlWithJitter())}
	c.mu.Unlock()
}

// ttlWithJitter must be called with mu held; rand.Rand is not safe for concurrent use.
func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% extra so entries loaded together do not expire together
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
