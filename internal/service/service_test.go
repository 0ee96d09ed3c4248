package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/internal/identity"
	"github.com/angelpublicista/tenemos-filo-api/internal/notification"
	"github.com/angelpublicista/tenemos-filo-api/internal/repository"
	"github.com/angelpublicista/tenemos-filo-api/pkg/saga"
	"github.com/angelpublicista/tenemos-filo-api/pkg/session"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []notification.Job
	err  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job notification.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) Close(ctx context.Context) error { return nil }

// failingProfiles fails Create while createErr is set. With landThenFail the
// profile is stored before the failure is reported.
type failingProfiles struct {
	*repository.MemoryProfileRepository
	createErr    error
	landThenFail bool
}

func (r *failingProfiles) Create(ctx context.Context, p *domain.Profile) error {
	if r.createErr != nil {
		return r.createErr
	}
	if err := r.MemoryProfileRepository.Create(ctx, p); err != nil {
		return err
	}
	if r.landThenFail {
		return errors.New("write acknowledgement lost")
	}
	return nil
}

// lossyStateStore fails every saga write into drop
type lossyStateStore struct {
	*saga.MemoryStateStore
	drop saga.State
}

func (s *lossyStateStore) UpdateSaga(ctx context.Context, sg *saga.ProvisioningSaga) error {
	if sg.State == s.drop {
		return errors.New("saga store unavailable")
	}
	return s.MemoryStateStore.UpdateSaga(ctx, sg)
}

// flakyOrganizations persists the organization and then reports failure,
// like a write that landed but whose acknowledgement was lost
type flakyOrganizations struct {
	*repository.MemoryOrganizationRepository
	failNext bool
	onCreate func()
}

func (r *flakyOrganizations) Create(ctx context.Context, org *domain.Organization) error {
	if err := r.MemoryOrganizationRepository.Create(ctx, org); err != nil {
		return err
	}
	if r.onCreate != nil {
		r.onCreate()
	}
	if r.failNext {
		r.failNext = false
		return errors.New("write acknowledgement lost")
	}
	return nil
}

type failingVenues struct {
	*repository.MemoryVenueRepository
	createErr error
}

func (r *failingVenues) Create(ctx context.Context, v *domain.Venue) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.MemoryVenueRepository.Create(ctx, v)
}

type fixture struct {
	profiles   *failingProfiles
	orgs       *flakyOrganizations
	venues     *failingVenues
	idp        *identity.MemoryProvider
	store      *saga.MemoryStateStore
	sagas      *saga.StateMachine
	dispatcher *recordingDispatcher
}

func newFixture() *fixture {
	store := saga.NewMemoryStateStore()
	return &fixture{
		profiles:   &failingProfiles{MemoryProfileRepository: repository.NewMemoryProfileRepository()},
		orgs:       &flakyOrganizations{MemoryOrganizationRepository: repository.NewMemoryOrganizationRepository()},
		venues:     &failingVenues{MemoryVenueRepository: repository.NewMemoryVenueRepository()},
		idp:        identity.NewMemoryProvider(),
		store:      store,
		sagas:      saga.NewStateMachine(store),
		dispatcher: &recordingDispatcher{},
	}
}

// racingStateStore runs afterLatest once, after a latest saga lookup has been
// read but before it is returned
type racingStateStore struct {
	*saga.MemoryStateStore
	afterLatest func()
}

func (s *racingStateStore) GetLatestByEmail(ctx context.Context, email string, kind saga.Kind) (*saga.ProvisioningSaga, error) {
	sg, err := s.MemoryStateStore.GetLatestByEmail(ctx, email, kind)
	if hook := s.afterLatest; hook != nil {
		s.afterLatest = nil
		hook()
	}
	return sg, err
}

// dropSagaWrites makes saga writes into state fail until restoreSagaWrites
func (f *fixture) dropSagaWrites(state saga.State) {
	f.sagas = saga.NewStateMachine(&lossyStateStore{MemoryStateStore: f.store, drop: state})
}

func (f *fixture) restoreSagaWrites() {
	f.sagas = saga.NewStateMachine(f.store)
}

func (f *fixture) provisioning() ProvisioningService {
	return NewProvisioningService(f.profiles, f.idp, NewDuplicateChecker(f.profiles), f.sagas, f.dispatcher, nil)
}

func (f *fixture) onboarding() OnboardingService {
	return NewOnboardingService(f.profiles, f.orgs, f.venues, f.idp, NewDuplicateChecker(f.profiles), f.sagas, f.dispatcher, nil)
}

func (f *fixture) latest(t *testing.T, email string, kind saga.Kind) *saga.ProvisioningSaga {
	t.Helper()
	sg, err := f.sagas.GetLatestByEmail(context.Background(), email, kind)
	require.NoError(t, err)
	return sg
}

func (f *fixture) state(t *testing.T, id string) *saga.ProvisioningSaga {
	t.Helper()
	sg, err := f.store.GetSaga(context.Background(), id)
	require.NoError(t, err)
	return sg
}

func guestFields() domain.ProfileFields {
	return domain.ProfileFields{Name: "Ana Ruiz", Role: domain.RoleGuest, Phone: "3001234567", DocumentType: "CC", DocumentNumber: "1001"}
}

func hostInputs() (domain.PersonalInfo, domain.OrganizationInfo, domain.VenueInfo) {
	personal := domain.PersonalInfo{
		FirstName:      "Luis",
		LastName:       "Mora",
		Email:          "Luis@Example.com",
		Password:       "secret123",
		Phone:          "+57 300 000 0000",
		DocumentType:   "CC",
		DocumentNumber: "2002",
	}
	org := domain.OrganizationInfo{
		Name:         "Café Luz",
		Type:         domain.OrganizationRestaurant,
		ContactEmail: "hola@cafeluz.co",
		ContactPhone: "6011234567",
	}
	venue := domain.VenueInfo{
		Name:    "Café Luz Centro",
		Address: domain.Address{Street: "Calle 10 # 5-20", City: "Bogotá"},
	}
	return personal, org, venue
}

func TestProvision_Guest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	profile, err := f.provisioning().Provision(ctx, "  Ana@Example.COM ", "secret123", guestFields())
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", profile.Email)
	assert.Equal(t, domain.RoleGuest, profile.Role)
	assert.True(t, profile.IsActive)
	assert.Empty(t, profile.LocationRefs)
	assert.True(t, f.idp.HasAccount("ana@example.com"))
	assert.Equal(t, 0, f.orgs.Count())
	assert.Equal(t, 0, f.venues.Count())

	sg := f.latest(t, "ana@example.com", saga.KindGuest)
	assert.Equal(t, saga.StateCompleted, sg.State)
	assert.Equal(t, profile.SubjectID, sg.SubjectID)
	assert.Equal(t, profile.ID, sg.ProfileID)

	require.Len(t, f.dispatcher.jobs, 1)
	assert.Equal(t, notification.KindWelcome, f.dispatcher.jobs[0].Kind)
	assert.Equal(t, "Ana Ruiz", f.dispatcher.jobs[0].Params.Name)
}

func TestProvision_Duplicates(t *testing.T) {
	tests := []struct {
		name  string
		email string
		doc   string
		field string
	}{
		{"email", "ana@example.com", "9999", domain.FieldEmail},
		{"email case-insensitive", "ANA@example.com ", "9999", domain.FieldEmail},
		{"document number", "otra@example.com", " 1001 ", domain.FieldDocumentNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			require.NoError(t, f.profiles.Create(ctx, &domain.Profile{Email: "ana@example.com", DocumentNumber: "1001", IsActive: true}))

			fields := guestFields()
			fields.DocumentNumber = tt.doc
			_, err := f.provisioning().Provision(ctx, tt.email, "secret123", fields)

			var dup *domain.DuplicateError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tt.field, dup.Field)
			assert.Equal(t, 0, f.idp.CreateCalls())
			assert.Equal(t, saga.StateFailed, f.latest(t, domain.NormalizeEmail(tt.email), saga.KindGuest).State)
		})
	}
}

func TestProvision_IdentityFailure(t *testing.T) {
	f := newFixture()
	f.idp.FailCreate = func(string) error {
		return &identity.Error{Code: identity.CodeEmailAlreadyInUse, Message: "EMAIL_EXISTS", Status: 400}
	}

	_, err := f.provisioning().Provision(context.Background(), "ana@example.com", "secret123", guestFields())

	var idErr *domain.IdentityError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, "Ya existe una cuenta con este correo electrónico.", idErr.UserMessage())
	assert.Equal(t, 0, f.profiles.Count())
	assert.Equal(t, saga.StateFailed, f.latest(t, "ana@example.com", saga.KindGuest).State)
}

func TestProvision_ProfileFailureCompensatesOnce(t *testing.T) {
	f := newFixture()
	f.profiles.createErr = errors.New("mongo unavailable")

	_, err := f.provisioning().Provision(context.Background(), "ana@example.com", "secret123", guestFields())

	var pce *domain.ProfileCreateError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, 1, f.idp.DeleteCalls())
	assert.False(t, f.idp.HasAccount("ana@example.com"))
	assert.Empty(t, f.dispatcher.jobs)

	sg := f.latest(t, "ana@example.com", saga.KindGuest)
	assert.Equal(t, saga.StateCompensated, sg.State)
	assert.Equal(t, f.idp.Deleted()[0], sg.SubjectID)
}

func TestProvision_CompensationFailureLeavesSagaForReconciler(t *testing.T) {
	f := newFixture()
	f.profiles.createErr = errors.New("mongo unavailable")
	f.idp.FailDelete = func(string) error { return errors.New("identity down") }

	_, err := f.provisioning().Provision(context.Background(), "ana@example.com", "secret123", guestFields())

	var pce *domain.ProfileCreateError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, 1, f.idp.DeleteCalls())
	assert.Equal(t, saga.StateCompensating, f.latest(t, "ana@example.com", saga.KindGuest).State)
}

func TestProvision_NotificationFailureIgnored(t *testing.T) {
	f := newFixture()
	f.dispatcher.err = notification.ErrQueueFull

	profile, err := f.provisioning().Provision(context.Background(), "ana@example.com", "secret123", guestFields())
	require.NoError(t, err)
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, saga.StateCompleted, f.latest(t, "ana@example.com", saga.KindGuest).State)
}

func TestCompensateAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	account, err := f.idp.CreateAccount(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)
	sg, err := f.sagas.Start(ctx, saga.KindGuest, "ana@example.com", nil)
	require.NoError(t, err)
	sg, err = f.sagas.MarkAccountCreated(ctx, sg.ID, account.SubjectID)
	require.NoError(t, err)

	updated, err := f.provisioning().CompensateAccount(ctx, sg)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompensated, updated.State)
	assert.False(t, f.idp.HasAccount("ana@example.com"))

	got, err := f.sagas.GetSaga(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompensated, got.State)
}

func TestCompensateAccount_KeepsAccountWithProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.dropSagaWrites(saga.StateProfileCreated)
	profile, err := f.provisioning().Provision(ctx, "ana@example.com", "secret123", guestFields())
	require.NoError(t, err)

	sg := f.latest(t, "ana@example.com", saga.KindGuest)
	require.Equal(t, saga.StateAccountCreated, sg.State)

	f.restoreSagaWrites()
	updated, err := f.provisioning().CompensateAccount(ctx, sg)
	require.NoError(t, err)

	assert.Equal(t, saga.StateProfileCreated, updated.State)
	assert.Equal(t, profile.ID, updated.ProfileID)
	assert.True(t, f.idp.HasAccount("ana@example.com"))
	assert.Zero(t, f.idp.DeleteCalls())

	stored, err := f.profiles.GetBySubjectID(ctx, sg.SubjectID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsActive)
}

func TestCompensateAccount_HostRecoversUntrackedOnboarding(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	f.dropSagaWrites(saga.StateProfileCreated)
	result, err := f.onboarding().OnboardHost(ctx, personal, org, venue)
	require.NoError(t, err)

	sg := f.latest(t, "luis@example.com", saga.KindHost)
	require.Equal(t, saga.StateAccountCreated, sg.State)

	f.restoreSagaWrites()
	updated, err := f.provisioning().CompensateAccount(ctx, sg)
	require.NoError(t, err)
	require.Equal(t, saga.StateProfileCreated, updated.State)
	assert.True(t, f.idp.HasAccount("luis@example.com"))

	resumed, err := f.onboarding().Resume(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, result.Organization.ID, resumed.Organization.ID)
	assert.Equal(t, result.Venue.ID, resumed.Venue.ID)
	assert.Equal(t, 1, f.orgs.Count())
	assert.Equal(t, 1, f.venues.Count())

	stored, err := f.profiles.GetByID(ctx, result.Profile.ID)
	require.NoError(t, err)
	assert.Len(t, stored.LocationRefs, 1)

	done, err := f.sagas.GetSaga(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompleted, done.State)
	assert.Equal(t, result.Organization.ID, done.OrganizationID)
	assert.Equal(t, result.Venue.ID, done.VenueID)
}

func TestProvision_CompensationKeepsAccountWhenInsertLanded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.profiles.landThenFail = true

	_, err := f.provisioning().Provision(ctx, "ana@example.com", "secret123", guestFields())

	var pce *domain.ProfileCreateError
	require.ErrorAs(t, err, &pce)
	assert.Zero(t, f.idp.DeleteCalls())
	assert.True(t, f.idp.HasAccount("ana@example.com"))
	assert.Equal(t, saga.StateCompensating, f.latest(t, "ana@example.com", saga.KindGuest).State)
}

func TestOnboardHost_EndToEnd(t *testing.T) {
	f := newFixture()
	personal, org, venue := hostInputs()

	result, err := f.onboarding().OnboardHost(context.Background(), personal, org, venue)
	require.NoError(t, err)

	assert.Equal(t, domain.RoleHost, result.Profile.Role)
	assert.Equal(t, "Luis Mora", result.Profile.Name)
	assert.Equal(t, "luis@example.com", result.Profile.Email)

	assert.False(t, result.Organization.IsActive)
	assert.Equal(t, "caf-luz", result.Organization.Slug)
	assert.True(t, result.Venue.IsMain)
	assert.False(t, result.Venue.IsActive)
	assert.Equal(t, result.Organization.ID, result.Venue.OrganizationRef)

	storedOrg, err := f.orgs.GetByID(context.Background(), result.Organization.ID)
	require.NoError(t, err)
	storedProfile, err := f.profiles.GetByID(context.Background(), result.Profile.ID)
	require.NoError(t, err)

	require.Len(t, storedOrg.LocationRefs, 1)
	require.Len(t, storedProfile.LocationRefs, 1)
	assert.Equal(t, result.Venue.ID, storedOrg.LocationRefs[0].Ref)
	assert.Equal(t, result.Venue.ID, storedProfile.LocationRefs[0].Ref)
	assert.NotEqual(t, storedOrg.LocationRefs[0].Key, storedProfile.LocationRefs[0].Key)

	sg := f.latest(t, "luis@example.com", saga.KindHost)
	assert.Equal(t, saga.StateCompleted, sg.State)
	assert.Equal(t, result.Organization.ID, sg.OrganizationID)
	assert.Equal(t, result.Venue.ID, sg.VenueID)

	stored, ok := sg.Data[dataPersonal].(domain.PersonalInfo)
	require.True(t, ok)
	assert.Empty(t, stored.Password)
}

func TestOnboardHost_RetryAfterOrganizationFailureIsNotIdempotent(t *testing.T) {
	f := newFixture()
	svc := f.onboarding()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	f.orgs.failNext = true
	_, err := svc.OnboardHost(ctx, personal, org, venue)

	var onbErr *domain.OnboardingError
	require.ErrorAs(t, err, &onbErr)
	assert.Equal(t, domain.StageOrganization, onbErr.Stage)
	assert.Equal(t, 1, f.orgs.Count())

	first := f.latest(t, "luis@example.com", saga.KindHost)
	assert.Equal(t, onbErr.SagaID, first.ID)
	assert.True(t, first.IsParked())

	result, err := svc.OnboardHost(ctx, personal, org, venue)
	require.NoError(t, err)

	assert.Equal(t, 2, f.orgs.Count())
	assert.Equal(t, 1, f.idp.CreateCalls())
	assert.Equal(t, 1, f.profiles.Count())

	abandoned, err := f.sagas.GetSaga(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateAbandoned, abandoned.State)

	second := f.latest(t, "luis@example.com", saga.KindHost)
	assert.Equal(t, second.ID, abandoned.SupersededBy)
	assert.Equal(t, saga.StateCompleted, second.State)
	assert.Equal(t, result.Profile.ID, second.ProfileID)
}

func TestOnboardHost_RetryRequiresPassword(t *testing.T) {
	f := newFixture()
	svc := f.onboarding()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	f.orgs.failNext = true
	_, err := svc.OnboardHost(ctx, personal, org, venue)
	require.Error(t, err)

	personal.Password = "wrong-password"
	_, err = svc.OnboardHost(ctx, personal, org, venue)

	var idErr *domain.IdentityError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, identity.CodeInvalidCredential, identity.CodeOf(idErr.Cause))
	assert.Equal(t, 1, f.store.Count())
}

func TestOnboardHost_VenueFailureParksSaga(t *testing.T) {
	f := newFixture()
	f.venues.createErr = errors.New("venues collection unavailable")
	personal, org, venue := hostInputs()

	_, err := f.onboarding().OnboardHost(context.Background(), personal, org, venue)

	var onbErr *domain.OnboardingError
	require.ErrorAs(t, err, &onbErr)
	assert.Equal(t, domain.StageVenue, onbErr.Stage)

	sg := f.latest(t, "luis@example.com", saga.KindHost)
	assert.Equal(t, saga.StateOrganizationCreated, sg.State)
	assert.Equal(t, domain.StageVenue, sg.FailedStage)
	assert.NotEmpty(t, sg.OrganizationID)
	assert.Equal(t, 0, f.idp.DeleteCalls())
}

func TestResume_ReusesRecordedOrganization(t *testing.T) {
	f := newFixture()
	svc := f.onboarding()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	f.venues.createErr = errors.New("venues collection unavailable")
	_, err := svc.OnboardHost(ctx, personal, org, venue)
	require.Error(t, err)
	f.venues.createErr = nil

	sg := f.latest(t, "luis@example.com", saga.KindHost)
	result, err := svc.Resume(ctx, sg)
	require.NoError(t, err)

	assert.Equal(t, sg.OrganizationID, result.Organization.ID)
	assert.Equal(t, 1, f.orgs.Count())
	assert.Equal(t, 1, f.venues.Count())

	done, err := f.sagas.GetSaga(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompleted, done.State)

	_, err = svc.Resume(ctx, done)
	assert.ErrorIs(t, err, ErrSagaNotResumable)
}

func TestResume_SkipsExistingLinks(t *testing.T) {
	f := newFixture()
	svc := f.onboarding()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	result, err := svc.OnboardHost(ctx, personal, org, venue)
	require.NoError(t, err)

	// a saga that crashed right before MarkCompleted
	sg := f.latest(t, "luis@example.com", saga.KindHost)
	sg.State = saga.StateOrganizationLinked
	require.NoError(t, f.store.UpdateSaga(ctx, sg))

	_, err = svc.Resume(ctx, sg)
	require.NoError(t, err)

	storedOrg, err := f.orgs.GetByID(ctx, result.Organization.ID)
	require.NoError(t, err)
	storedProfile, err := f.profiles.GetByID(ctx, result.Profile.ID)
	require.NoError(t, err)
	assert.Len(t, storedOrg.LocationRefs, 1)
	assert.Len(t, storedProfile.LocationRefs, 1)
}

func TestOnboardHost_RetryStopsWhenParkedSagaMovedOn(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	f.orgs.failNext = true
	_, err := f.onboarding().OnboardHost(ctx, personal, org, venue)
	require.Error(t, err)
	parked := f.latest(t, "luis@example.com", saga.KindHost)

	racing := &racingStateStore{MemoryStateStore: f.store}
	f.sagas = saga.NewStateMachine(racing)
	svc := f.onboarding()
	racing.afterLatest = func() {
		_, err := svc.Resume(ctx, parked)
		require.NoError(t, err)
	}

	_, err = svc.OnboardHost(ctx, personal, org, venue)
	assert.ErrorIs(t, err, domain.ErrOnboardingInProgress)

	assert.Equal(t, saga.StateCompleted, f.state(t, parked.ID).State)
	assert.Equal(t, 2, f.orgs.Count())
	assert.Equal(t, 1, f.venues.Count())

	retry := f.latest(t, "luis@example.com", saga.KindHost)
	assert.NotEqual(t, parked.ID, retry.ID)
	assert.Equal(t, saga.StateFailed, retry.State)
}

func TestResume_StopsWhenSagaAbandoned(t *testing.T) {
	f := newFixture()
	svc := f.onboarding()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	f.orgs.failNext = true
	_, err := svc.OnboardHost(ctx, personal, org, venue)
	require.Error(t, err)
	parked := f.latest(t, "luis@example.com", saga.KindHost)
	require.Equal(t, 1, f.orgs.Count())

	f.orgs.onCreate = func() {
		f.orgs.onCreate = nil
		_, err := f.sagas.MarkAbandoned(ctx, parked.ID, "retry-1")
		require.NoError(t, err)
	}

	_, err = svc.Resume(ctx, parked)
	assert.ErrorIs(t, err, ErrSagaSuperseded)

	assert.Equal(t, 1, f.orgs.Count())
	assert.Zero(t, f.venues.Count())
	assert.Equal(t, saga.StateAbandoned, f.state(t, parked.ID).State)
}

func TestRollBack_DeletesAbandonedRecords(t *testing.T) {
	f := newFixture()
	svc := f.onboarding()
	ctx := context.Background()
	personal, org, venue := hostInputs()

	f.venues.createErr = errors.New("venues collection unavailable")
	_, err := svc.OnboardHost(ctx, personal, org, venue)
	require.Error(t, err)
	first := f.latest(t, "luis@example.com", saga.KindHost)

	f.venues.createErr = nil
	_, err = svc.OnboardHost(ctx, personal, org, venue)
	require.NoError(t, err)
	assert.Equal(t, 2, f.orgs.Count())

	abandoned, err := f.sagas.GetSaga(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, svc.RollBack(ctx, abandoned))

	assert.Equal(t, 1, f.orgs.Count())
	gone, err := f.orgs.GetByID(ctx, first.OrganizationID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	rolled, err := f.sagas.GetSaga(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateRolledBack, rolled.State)

	assert.ErrorIs(t, svc.RollBack(ctx, rolled), ErrSagaNotAbandoned)
}

func newAuthFixture(t *testing.T) (*fixture, AuthService, *session.Manager) {
	t.Helper()
	f := newFixture()
	sessions := session.NewManager(session.NewMemoryStore(), session.ManagerConfig{Secret: "test-secret", TTL: time.Hour})
	return f, NewAuthService(f.idp, f.profiles, sessions), sessions
}

func TestAuthService_SignInAndOut(t *testing.T) {
	f, auth, sessions := newAuthFixture(t)
	ctx := context.Background()

	profile, err := f.provisioning().Provision(ctx, "ana@example.com", "secret123", guestFields())
	require.NoError(t, err)

	resp, err := auth.SignIn(ctx, "ANA@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, profile.ID, resp.Profile.ID)

	sess, err := sessions.Resolve(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, profile.SubjectID, sess.SubjectID)
	assert.Equal(t, "guest", sess.Role)

	me, err := auth.Me(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, me.SessionID)
	assert.Equal(t, profile.ID, me.Profile.ID)

	require.NoError(t, auth.SignOut(ctx, sess))
	_, err = sessions.Resolve(ctx, resp.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 1, f.idp.SignOutCalls(profile.SubjectID))
}

func TestAuthService_SignInErrors(t *testing.T) {
	f, auth, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.idp.CreateAccount(ctx, "orphan@example.com", "secret123")
	require.NoError(t, err)
	pending, err := f.idp.CreateAccount(ctx, "pending@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.profiles.Create(ctx, &domain.Profile{SubjectID: pending.SubjectID, Email: "pending@example.com", IsActive: false}))

	_, err = auth.SignIn(ctx, "orphan@example.com", "secret123")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	_, err = auth.SignIn(ctx, "pending@example.com", "secret123")
	assert.ErrorIs(t, err, domain.ErrAccountPending)

	_, err = auth.SignIn(ctx, "pending@example.com", "nope")
	var idErr *domain.IdentityError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, "Credenciales incorrectas. Verifica tu email y contraseña.", idErr.UserMessage())
}

func TestAuthService_SendPasswordReset(t *testing.T) {
	f, auth, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.idp.CreateAccount(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, auth.SendPasswordReset(ctx, " Ana@example.com"))
	assert.Equal(t, []string{"ana@example.com"}, f.idp.PasswordResets())

	var idErr *domain.IdentityError
	assert.ErrorAs(t, auth.SendPasswordReset(ctx, "nadie@example.com"), &idErr)
}

func TestEmailService_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  dto.SendEmailRequest
		want string
	}{
		{"missing email", dto.SendEmailRequest{Type: "welcome", Name: "Ana", Role: "guest"}, "Email es requerido"},
		{"welcome without role", dto.SendEmailRequest{Type: "welcome", Email: "a@example.com", Name: "Ana"}, "Nombre y rol son requeridos para email de bienvenida"},
		{"welcome without name", dto.SendEmailRequest{Type: "welcome", Email: "a@example.com", Role: "host"}, "Nombre y rol son requeridos para email de bienvenida"},
		{"reset without token", dto.SendEmailRequest{Type: "password-reset", Email: "a@example.com"}, "Token es requerido para reset de contraseña"},
		{"verification without token", dto.SendEmailRequest{Type: "email-verification", Email: "a@example.com"}, "Token es requerido para verificación de email"},
		{"unknown type", dto.SendEmailRequest{Type: "newsletter", Email: "a@example.com"}, "Tipo de email no válido"},
	}

	svc := NewEmailService(&stubMailer{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), &tt.req)

			var reqErr *EmailRequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.want, reqErr.Message)
		})
	}
}

type stubMailer struct {
	to   string
	kind notification.Kind
	err  error
}

func (m *stubMailer) SendTemplated(ctx context.Context, to string, kind notification.Kind, params notification.Params) (string, error) {
	m.to, m.kind = to, kind
	if m.err != nil {
		return "", m.err
	}
	return "<id@tenemosfilo.com>", nil
}

func TestEmailService_Send(t *testing.T) {
	mailer := &stubMailer{}
	svc := NewEmailService(mailer)

	id, err := svc.Send(context.Background(), &dto.SendEmailRequest{Type: "password-reset", Email: " a@example.com ", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "<id@tenemosfilo.com>", id)
	assert.Equal(t, "a@example.com", mailer.to)
	assert.Equal(t, notification.KindPasswordReset, mailer.kind)

	mailer.err = errors.New("relay down")
	_, err = svc.Send(context.Background(), &dto.SendEmailRequest{Type: "password-reset", Email: "a@example.com", Token: "tok"})
	require.Error(t, err)
	var reqErr *EmailRequestError
	assert.False(t, errors.As(err, &reqErr))
}

func TestVenueService_ListByOrganization(t *testing.T) {
	venues := repository.NewMemoryVenueRepository()
	ctx := context.Background()
	require.NoError(t, venues.Create(ctx, &domain.Venue{Name: "Norte", OrganizationRef: "org-1"}))
	require.NoError(t, venues.Create(ctx, &domain.Venue{Name: "Centro", OrganizationRef: "org-1", IsMain: true}))
	require.NoError(t, venues.Create(ctx, &domain.Venue{Name: "Otro", OrganizationRef: "org-2"}))

	got, err := NewVenueService(venues).ListByOrganization(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Centro", got[0].Name)
	assert.Equal(t, "Norte", got[1].Name)
}
