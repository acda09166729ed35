package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
)

// UserRepository covers back-office and provider accounts.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	GetSettings(userID uint) (*models.UserSettings, error)
	SaveSettings(settings *models.UserSettings) error
	TouchAPIKey(settingsID uint, at time.Time) error
	UpdateLastLogin(id uint, at time.Time) error
	Update(user *models.User) error
	List(query string, offset, limit int) ([]models.User, int64, error)
}

// ProviderRepository defines provider registration and moderation queries
type ProviderRepository interface {
	// Register creates the provider and its owning user in one transaction.
	Register(provider *models.Provider, owner *models.User) error
	GetByID(id uint) (*models.Provider, error)
	CodeExists(code string) (bool, error)
	Update(provider *models.Provider) error
	UpdateStatus(id uint, status string) error
	List(filter ProviderFilter) ([]models.Provider, int64, error)
	CountByStatus() (map[string]int64, error)
}

// ProviderFilter narrows the admin provider list.
type ProviderFilter struct {
	Status string
	Query  string
	Offset int
	Limit  int
}

// MemberRepository defines member CRUD scoped to one provider
type MemberRepository interface {
	Create(member *models.Member) error
	GetByID(providerID, id uint) (*models.Member, error)
	Update(member *models.Member) error
	Delete(providerID, id uint) error
	ListByProvider(providerID uint, query string, offset, limit int) ([]models.Member, int64, error)
	UniqueIDExists(providerID uint, uniqueID string) (bool, error)
	Count() (int64, error)
}

// ConsumerRepository defines consumer lookup and OAuth linking
type ConsumerRepository interface {
	GetByID(id uint) (*models.Consumer, error)
	// LinkIdentity returns the consumer for an OAuth identity, creating or
	// linking one by email when the identity is new.
	LinkIdentity(identity *models.ConsumerIdentity, profile models.Consumer) (*models.Consumer, error)
	Count() (int64, error)
}

// BankAccountRepository keeps exactly one default payout account per provider
type BankAccountRepository interface {
	ListByProvider(providerID uint) ([]models.BankAccount, error)
	GetByID(providerID, id uint) (*models.BankAccount, error)
	Create(account *models.BankAccount) error
	SetDefault(providerID, id uint) error
	Delete(providerID, id uint) error
}

// TransactionRepository defines the admin view on gateway orders
type TransactionRepository interface {
	List(status string, offset, limit int) ([]models.Transaction, int64, error)
	CountByStatus() (map[string]int64, error)
	CollectedAmount() (decimal.Decimal, error)
	DailyPayments(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// QueueRepository inspects the Redis keys behind the job queue and the
// portal caches.
type QueueRepository interface {
	Inspect(ctx context.Context, patterns []string) ([]KeyInfo, error)
	DeleteKey(ctx context.Context, key string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	Provider    ProviderRepository
	Member      MemberRepository
	Consumer    ConsumerRepository
	BankAccount BankAccountRepository
	Transaction TransactionRepository
	Queue       QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Provider:    NewProviderRepository(db),
		Member:      NewMemberRepository(db),
		Consumer:    NewConsumerRepository(db),
		BankAccount: NewBankAccountRepository(db),
		Transaction: NewTransactionRepository(db),
		Queue:       NewQueueRepository(cache.GetClient()),
	}
}
