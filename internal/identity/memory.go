package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryAccount struct {
	subjectID string
	email     string
	password  string
}

// MemoryProvider is an in-memory Provider for local development and tests.
// The Fail* hooks inject errors per operation.
type MemoryProvider struct {
	mu        sync.Mutex
	accounts  map[string]*memoryAccount // by email
	revoked   map[string]int
	resets    []string
	createN   int
	deleteN   int
	deletedBy []string

	FailCreate func(email string) error
	FailDelete func(subjectID string) error
	FailSignIn func(email string) error
}

// NewMemoryProvider creates an empty MemoryProvider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts: make(map[string]*memoryAccount),
		revoked:  make(map[string]int),
	}
}

func (p *MemoryProvider) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.createN++
	if p.FailCreate != nil {
		if err := p.FailCreate(email); err != nil {
			return nil, err
		}
	}
	if _, ok := p.accounts[email]; ok {
		return nil, &Error{Code: CodeEmailAlreadyInUse, Message: "EMAIL_EXISTS", Status: 400}
	}
	if len(password) < 6 {
		return nil, &Error{Code: CodeWeakPassword, Message: "WEAK_PASSWORD : Password should be at least 6 characters", Status: 400}
	}

	acc := &memoryAccount{subjectID: uuid.New().String(), email: email, password: password}
	p.accounts[email] = acc
	return &Account{SubjectID: acc.subjectID, Email: email}, nil
}

func (p *MemoryProvider) DeleteAccount(ctx context.Context, subjectID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleteN++
	p.deletedBy = append(p.deletedBy, subjectID)
	if p.FailDelete != nil {
		if err := p.FailDelete(subjectID); err != nil {
			return err
		}
	}
	for email, acc := range p.accounts {
		if acc.subjectID == subjectID {
			delete(p.accounts, email)
		}
	}
	return nil
}

func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailSignIn != nil {
		if err := p.FailSignIn(email); err != nil {
			return nil, err
		}
	}
	acc, ok := p.accounts[email]
	if !ok || acc.password != password {
		return nil, &Error{Code: CodeInvalidCredential, Message: "INVALID_LOGIN_CREDENTIALS", Status: 400}
	}
	return &Account{SubjectID: acc.subjectID, Email: email}, nil
}

func (p *MemoryProvider) SignOut(ctx context.Context, subjectID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked[subjectID]++
	return nil
}

func (p *MemoryProvider) SendPasswordReset(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[email]; !ok {
		return &Error{Code: CodeUserNotFound, Message: "EMAIL_NOT_FOUND", Status: 400}
	}
	p.resets = append(p.resets, email)
	return nil
}

// CreateCalls returns how many times CreateAccount was called
func (p *MemoryProvider) CreateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createN
}

// DeleteCalls returns how many times DeleteAccount was called
func (p *MemoryProvider) DeleteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deleteN
}

// Deleted returns the subjects passed to DeleteAccount in call order
func (p *MemoryProvider) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deletedBy...)
}

// HasAccount reports whether an account exists for email
func (p *MemoryProvider) HasAccount(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.accounts[email]
	return ok
}

// SignOutCalls returns how many times the subject was signed out
func (p *MemoryProvider) SignOutCalls(subjectID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked[subjectID]
}

// PasswordResets returns the emails a reset was sent to
func (p *MemoryProvider) PasswordResets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resets...)
}
