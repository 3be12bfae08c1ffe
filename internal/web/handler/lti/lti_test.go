package lti

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/db/controller/gradelink"
	"github.com/wims-lti/wims-lti/internal/db/controller/provider"
	"github.com/wims-lti/wims-lti/internal/db/controller/registry"
	"github.com/wims-lti/wims-lti/internal/db/models"
	"github.com/wims-lti/wims-lti/internal/oauth1"
	"github.com/wims-lti/wims-lti/internal/wims"
)

const (
	baseURL        = "http://bridge.example.com"
	consumerKey    = "moodle"
	consumerSecret = "secret"
)

// fakeProvisioner records WIMS provisioning calls.
type fakeProvisioner struct {
	addedClasses []wims.Class
	addedUsers   []wims.User
	nextClassID  string
	addClassErr  error
	addUserErr   error
}

func (f *fakeProvisioner) AddClass(ctx context.Context, class wims.Class) (string, error) {
	if f.addClassErr != nil {
		return "", f.addClassErr
	}
	f.addedClasses = append(f.addedClasses, class)
	return f.nextClassID, nil
}

func (f *fakeProvisioner) AddUser(ctx context.Context, qclass string, user wims.User) error {
	if f.addUserErr != nil {
		return f.addUserErr
	}
	f.addedUsers = append(f.addedUsers, user)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.Consumer{},
		&models.Provider{},
		&models.ClassMapping{},
		&models.UserMapping{},
		&models.ActivityMapping{},
		&models.GradeLink{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Title: "wims-lti",
		Webserver: config.Webserver{
			URL:  baseURL,
			Port: 8080,
		},
		Sync: config.Sync{Timeout: time.Second},
	}
}

// setup wires a test app with seeded consumer and provider.
func setup(t *testing.T, fake *fakeProvisioner) (*fiber.App, *gorm.DB, *models.Consumer, *models.Provider) {
	t.Helper()

	db := newTestDB(t)

	cons := &models.Consumer{Key: consumerKey, Secret: consumerSecret, Name: "Moodle"}
	require.NoError(t, db.Create(cons).Error)

	prov := &models.Provider{
		URL:            "https://wims.example.com/wims/wims.cgi",
		Name:           "Main WIMS",
		Ident:          "myself",
		Passwd:         "trap",
		RClass:         "myclass",
		ClassLimit:     150,
		ExpirationDays: 365,
	}
	require.NoError(t, db.Create(prov).Error)
	require.NoError(t, provider.AllowConsumer(db, prov, cons))

	app := fiber.New()
	svc := Service{
		newClient: func(p *models.Provider, timeout time.Duration) Provisioner {
			return fake
		},
	}
	svc.Init(app, newTestConfig(), db)

	return app, db, cons, prov
}

// launchForm builds a minimal instructor launch.
func launchForm(roles string) url.Values {
	form := url.Values{}
	form.Set("lti_message_type", "basic-lti-launch-request")
	form.Set("lti_version", "LTI-1p0")
	form.Set("context_id", "course-42")
	form.Set("context_title", "Algebra 101")
	form.Set("user_id", "lms-user-7")
	form.Set("roles", roles)
	form.Set("ext_user_username", "jdoe")
	form.Set("lis_person_name_given", "Jane")
	form.Set("lis_person_name_family", "Doe")
	form.Set("lis_person_contact_email_primary", "jane@example.com")
	return form
}

func post(t *testing.T, app *fiber.App, path string, form url.Values, sign bool) *http.Response {
	t.Helper()

	if sign {
		oauth1.SignForm(http.MethodPost, baseURL+path, consumerKey, consumerSecret, form)
	}

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestLaunchClassProvisionsEverything(t *testing.T) {
	fake := &fakeProvisioner{nextClassID: "9001"}
	app, db, cons, prov := setup(t, fake)

	resp := post(t, app, "/lti/1", launchForm("Instructor"), true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, prov.URL+"?class=9001", resp.Header.Get("Location"))

	// Class created on WIMS with the provider defaults.
	require.Len(t, fake.addedClasses, 1)
	created := fake.addedClasses[0]
	assert.Equal(t, "Algebra 101", created.Name)
	assert.Equal(t, "Jane Doe", created.Supervisor)
	assert.EqualValues(t, 150, created.Limit)
	assert.NotEmpty(t, created.Password)

	// Supervisor account created and mapped.
	require.Len(t, fake.addedUsers, 1)
	assert.Equal(t, "jdoe", fake.addedUsers[0].QUser)

	class, err := registry.ClassByLMS(db, cons.ID, "course-42")
	require.NoError(t, err)
	assert.Equal(t, "9001", class.QClass)

	user, err := registry.UserByQUser(db, class.ID, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "lms-user-7", user.LMSUUID)
}

func TestLaunchClassIdempotent(t *testing.T) {
	fake := &fakeProvisioner{nextClassID: "9001"}
	app, _, _, _ := setup(t, fake)

	resp := post(t, app, "/lti/1", launchForm("Instructor"), true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	// A second launch reuses the mappings, nothing new on WIMS.
	resp = post(t, app, "/lti/1", launchForm("Instructor"), true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Len(t, fake.addedClasses, 1)
	assert.Len(t, fake.addedUsers, 1)
}

func TestLaunchClassStudentBeforeSetup(t *testing.T) {
	fake := &fakeProvisioner{nextClassID: "9001"}
	app, _, _, _ := setup(t, fake)

	resp := post(t, app, "/lti/1", launchForm("Learner"), true)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, fake.addedClasses)
}

func TestLaunchRejections(t *testing.T) {
	testCases := []struct {
		name       string
		path       string
		mutate     func(url.Values)
		sign       bool
		wantStatus int
	}{
		{
			name:       "unknown provider",
			path:       "/lti/999",
			sign:       true,
			wantStatus: fiber.StatusNotFound,
		},
		{
			name:       "unsigned launch",
			path:       "/lti/1",
			sign:       false,
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name: "unknown consumer key",
			path: "/lti/1",
			mutate: func(form url.Values) {
				form.Set("oauth_consumer_key", "nobody")
			},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name: "tampered after signing",
			path: "/lti/1",
			sign: true,
			mutate: func(form url.Values) {
				form.Set("context_id", "course-666")
			},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name: "wrong message type",
			path: "/lti/1",
			sign: true,
			mutate: func(form url.Values) {
				form.Set("lti_message_type", "ContentItemSelectionRequest")
			},
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeProvisioner{nextClassID: "9001"}
			app, _, _, _ := setup(t, fake)

			form := launchForm("Instructor")
			if tc.sign {
				oauth1.SignForm(http.MethodPost, baseURL+tc.path, consumerKey, consumerSecret, form)
			}
			if tc.mutate != nil {
				tc.mutate(form)
			}

			resp := post(t, app, tc.path, form, false)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestLaunchConsumerNotAllowed(t *testing.T) {
	fake := &fakeProvisioner{nextClassID: "9001"}
	app, db, _, _ := setup(t, fake)

	// A second provider without the consumer on its allow-list.
	other := &models.Provider{
		URL:    "https://wims2.example.com/wims/wims.cgi",
		Name:   "Second WIMS",
		Ident:  "myself",
		Passwd: "trap",
		RClass: "myclass",
	}
	require.NoError(t, db.Create(other).Error)

	path := "/lti/2"
	resp := post(t, app, path, launchForm("Instructor"), true)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLaunchActivityCreatesGradeLink(t *testing.T) {
	fake := &fakeProvisioner{nextClassID: "9001"}
	app, db, cons, prov := setup(t, fake)

	form := launchForm("Instructor")
	form.Set("resource_link_id", "resource-3")
	form.Set("lis_result_sourcedid", "sid-1")
	form.Set("lis_outcome_service_url", "https://lms.example.com/outcomes")

	resp := post(t, app, "/lti/1/sheet/2", form, true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, prov.URL+"?class=9001&sh=2", resp.Header.Get("Location"))

	class, err := registry.ClassByLMS(db, cons.ID, "course-42")
	require.NoError(t, err)

	activity, err := registry.ActivityByLMS(db, class.ID, "resource-3")
	require.NoError(t, err)
	assert.Equal(t, "2", activity.QSheet)

	user, err := registry.UserByQUser(db, class.ID, "jdoe")
	require.NoError(t, err)

	link, err := gradelink.Get(db, user.ID, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", link.SourcedID)
	assert.Equal(t, "https://lms.example.com/outcomes", link.URL)
}

func TestLaunchActivityWithoutOutcomeParams(t *testing.T) {
	fake := &fakeProvisioner{nextClassID: "9001"}
	app, db, cons, _ := setup(t, fake)

	// Instructors launching from a preview context carry no sourcedid.
	form := launchForm("Instructor")
	form.Set("resource_link_id", "resource-3")

	resp := post(t, app, "/lti/1/sheet/2", form, true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	class, err := registry.ClassByLMS(db, cons.ID, "course-42")
	require.NoError(t, err)
	user, err := registry.UserByQUser(db, class.ID, "jdoe")
	require.NoError(t, err)

	activity, err := registry.ActivityByLMS(db, class.ID, "resource-3")
	require.NoError(t, err)

	_, err = gradelink.Get(db, user.ID, activity.ID)
	require.ErrorIs(t, err, gradelink.ErrGradeLinkNotFound)
}

func TestLaunchRetriesUserAfterProvisioningFailure(t *testing.T) {
	fake := &fakeProvisioner{
		nextClassID: "9001",
		addUserErr:  &wims.RemoteError{Job: "adduser", Message: "connection timed out"},
	}
	app, db, _, _ := setup(t, fake)

	// The WIMS server is down while creating the account: the launch fails
	// and must not leave a mapping behind.
	resp := post(t, app, "/lti/1", launchForm("Instructor"), true)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Empty(t, fake.addedUsers)

	var count int64
	db.Model(&models.UserMapping{}).Count(&count)
	assert.Zero(t, count)

	// The server recovers, the next launch provisions the account.
	fake.addUserErr = nil
	resp = post(t, app, "/lti/1", launchForm("Instructor"), true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	require.Len(t, fake.addedUsers, 1)
	assert.Equal(t, "jdoe", fake.addedUsers[0].QUser)

	db.Model(&models.UserMapping{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestLoginCollisionGetsSuffix(t *testing.T) {
	fake := &fakeProvisioner{nextClassID: "9001"}
	app, db, cons, _ := setup(t, fake)

	// First user takes the login jdoe.
	resp := post(t, app, "/lti/1", launchForm("Instructor"), true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	// A second LMS user with the same preferred login.
	form := launchForm("Learner")
	form.Set("user_id", "lms-user-8")
	resp = post(t, app, "/lti/1", form, true)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	class, err := registry.ClassByLMS(db, cons.ID, "course-42")
	require.NoError(t, err)

	user, err := registry.UserByQUser(db, class.ID, "jdoe1")
	require.NoError(t, err)
	assert.Equal(t, "lms-user-8", user.LMSUUID)
}
