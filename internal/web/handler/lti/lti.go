// Package lti handles LTI 1.1 launch requests from LMS instances. A launch
// authenticates the LMS by its OAuth signature, provisions the WIMS class,
// user and activity mappings as needed and redirects the browser to the WIMS
// server.
package lti

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/db/controller/consumer"
	"github.com/wims-lti/wims-lti/internal/db/controller/gradelink"
	"github.com/wims-lti/wims-lti/internal/db/controller/provider"
	"github.com/wims-lti/wims-lti/internal/db/controller/registry"
	"github.com/wims-lti/wims-lti/internal/db/models"
	"github.com/wims-lti/wims-lti/internal/oauth1"
	"github.com/wims-lti/wims-lti/internal/uniuri"
	"github.com/wims-lti/wims-lti/internal/web/handler"
	"github.com/wims-lti/wims-lti/internal/wims"
)

const (
	// Path is the base path of the launch endpoints.
	Path = "/lti"

	messageTypeLaunch = "basic-lti-launch-request"

	supervisorPasswordLen = 12
	maxLoginAttempts      = 10
)

// Provisioner is the part of the WIMS client launches create things with.
type Provisioner interface {
	AddClass(ctx context.Context, class wims.Class) (string, error)
	AddUser(ctx context.Context, qclass string, user wims.User) error
}

// ClientFactory builds a provisioner for one WIMS server.
type ClientFactory func(p *models.Provider, timeout time.Duration) Provisioner

// Service is the LTI launch handler service.
type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	newClient ClientFactory
}

// Handler is the LTI launch handler.
var Handler = Service{}

// Init initializes the launch handler and registers its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	if s.newClient == nil {
		s.newClient = func(p *models.Provider, timeout time.Duration) Provisioner {
			return wims.New(p.URL, p.Ident, p.Passwd, p.RClass, timeout)
		}
	}

	app.Post(Path+"/:provider", s.LaunchClass)
	app.Post(Path+"/:provider/sheet/:qsheet", s.LaunchActivity)
}

// launch carries everything extracted and verified from one launch request.
type launch struct {
	form     url.Values
	consumer *models.Consumer
	provider *models.Provider
}

func (l *launch) contextID() string  { return l.form.Get("context_id") }
func (l *launch) userID() string     { return l.form.Get("user_id") }
func (l *launch) resourceID() string { return l.form.Get("resource_link_id") }

// instructor reports whether the launching user may administrate the class.
func (l *launch) instructor() bool {
	roles := strings.ToLower(l.form.Get("roles"))
	for _, role := range strings.Split(roles, ",") {
		if strings.Contains(role, "instructor") ||
			strings.Contains(role, "administrator") ||
			strings.Contains(role, "staff") {
			return true
		}
	}
	return false
}

// preferredLogin derives the WIMS login to try first for the launching user.
func (l *launch) preferredLogin() string {
	if username := l.form.Get("ext_user_username"); username != "" {
		return sanitizeLogin(username)
	}
	if email := l.form.Get("lis_person_contact_email_primary"); email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			return sanitizeLogin(email[:at])
		}
	}
	return sanitizeLogin("user" + l.userID())
}

// sanitizeLogin keeps the characters WIMS accepts in logins.
func sanitizeLogin(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

// verify authenticates one launch request: known provider, known consumer,
// valid OAuth signature, consumer allowed on the provider, launch message type.
func (s *Service) verify(c *fiber.Ctx) (*launch, error) {
	providerID, err := strconv.ParseUint(c.Params("provider"), 10, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown WIMS server")
	}

	prov, err := provider.GetByID(s.db, providerID)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "unknown WIMS server")
		}
		return nil, err
	}

	form, err := url.ParseQuery(string(c.Body()))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "malformed launch body")
	}

	if mt := form.Get("lti_message_type"); mt != messageTypeLaunch {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unsupported lti_message_type "+mt)
	}
	if form.Get("context_id") == "" || form.Get("user_id") == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "missing context_id or user_id")
	}

	cons, err := consumer.GetByKey(s.db, form.Get("oauth_consumer_key"))
	if err != nil {
		if errors.Is(err, consumer.ErrConsumerNotFound) || errors.Is(err, consumer.ErrKeyEmpty) {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "unknown consumer key")
		}
		return nil, err
	}

	launchURL := strings.TrimRight(s.cfg.Webserver.URL, "/") + c.Path()
	if err := oauth1.VerifyForm(fiber.MethodPost, launchURL, cons.Secret, form); err != nil {
		log.Warn().
			Err(err).
			Str("consumer_key", cons.Key).
			Msg("launch signature rejected")
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid oauth signature")
	}

	allowed, err := provider.IsAllowed(s.db, prov, cons.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fiber.NewError(fiber.StatusForbidden, "consumer not allowed on this WIMS server")
	}

	return &launch{form: form, consumer: cons, provider: prov}, nil
}

// resolveClass returns the class mapping of the launch context, creating the
// class on the WIMS server first when an instructor launches a new context.
func (s *Service) resolveClass(ctx context.Context, l *launch) (*models.ClassMapping, error) {
	class, err := registry.ClassByLMS(s.db, l.consumer.ID, l.contextID())
	if err == nil {
		return class, nil
	}
	if !errors.Is(err, registry.ErrClassNotFound) {
		return nil, err
	}

	if !l.instructor() {
		return nil, fiber.NewError(fiber.StatusForbidden,
			"this activity has not been set up by a teacher yet")
	}

	name := l.form.Get("context_title")
	if name == "" {
		name = l.contextID()
	}

	expiration := time.Now().AddDate(0, 0, int(l.provider.ExpirationDays)).Format("20060102")
	client := s.newClient(l.provider, s.cfg.Sync.RemoteTimeout())

	qclass, err := client.AddClass(ctx, wims.Class{
		Name:        name,
		Institution: l.form.Get("tool_consumer_instance_name"),
		Supervisor:  personName(l.form),
		Email:       l.form.Get("lis_person_contact_email_primary"),
		Password:    uniuri.NewLen(supervisorPasswordLen),
		Lang:        launchLang(l.form),
		Expiration:  expiration,
		Limit:       l.provider.ClassLimit,
	})
	if err != nil {
		return nil, err
	}

	class, err = registry.ResolveClass(s.db, l.consumer, l.contextID(), l.provider, qclass, name)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("qclass", qclass).
		Str("context_id", l.contextID()).
		Str("provider_url", l.provider.URL).
		Msg("class provisioned on WIMS server")

	// Reload with associations.
	return registry.ClassByLMS(s.db, l.consumer.ID, l.contextID())
}

// resolveUser returns the user mapping of the launching user, creating the
// WIMS account on first launch. Login collisions get a numeric suffix.
func (s *Service) resolveUser(ctx context.Context, l *launch, class *models.ClassMapping) (*models.UserMapping, error) {
	existing, err := registry.UserByLMS(s.db, l.userID())
	if err == nil {
		if existing.ClassID != class.ID {
			return nil, fiber.NewError(fiber.StatusConflict,
				"user is already enrolled in another class")
		}
		return existing, nil
	}
	if !errors.Is(err, registry.ErrUserNotFound) {
		return nil, err
	}

	base := l.preferredLogin()

	for attempt := 0; attempt < maxLoginAttempts; attempt++ {
		quser := base
		if attempt > 0 {
			quser = base + strconv.Itoa(attempt)
		}

		mapping, err := registry.ResolveUser(s.db, class, l.userID(), quser)
		if err != nil {
			if errors.Is(err, registry.ErrMappingConflict) {
				// login taken by someone else, try the next suffix
				continue
			}
			return nil, err
		}

		client := s.newClient(l.provider, s.cfg.Sync.RemoteTimeout())
		err = client.AddUser(ctx, class.QClass, wims.User{
			QUser:     quser,
			FirstName: l.form.Get("lis_person_name_given"),
			LastName:  l.form.Get("lis_person_name_family"),
			Email:     l.form.Get("lis_person_contact_email_primary"),
			Password:  uniuri.NewLen(supervisorPasswordLen),
		})
		if err != nil {
			// Roll the mapping back, otherwise the next launch finds it and
			// never retries the WIMS account.
			if delErr := registry.DeleteUser(s.db, mapping.ID); delErr != nil {
				log.Error().
					Err(delErr).
					Str("quser", quser).
					Str("qclass", class.QClass).
					Msg("rolling back user mapping failed")
			}
			return nil, err
		}

		return mapping, nil
	}

	return nil, fiber.NewError(fiber.StatusConflict, "no free WIMS login for user")
}

// LaunchClass handles a launch pointing at a whole class: provision if
// needed, then send the browser to the WIMS class home.
func (s *Service) LaunchClass(c *fiber.Ctx) error {
	l, err := s.verify(c)
	if err != nil {
		return err
	}

	class, err := s.resolveClass(c.Context(), l)
	if err != nil {
		return remoteToHTTP(err)
	}

	if _, err := s.resolveUser(c.Context(), l, class); err != nil {
		return remoteToHTTP(err)
	}

	return c.Redirect(classURL(l.provider, class.QClass), fiber.StatusSeeOther)
}

// LaunchActivity handles a launch pointing at one sheet: everything the class
// launch does, plus the activity mapping and the grade link of the user.
func (s *Service) LaunchActivity(c *fiber.Ctx) error {
	l, err := s.verify(c)
	if err != nil {
		return err
	}

	qsheet := c.Params("qsheet")
	if l.resourceID() == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing resource_link_id")
	}

	class, err := s.resolveClass(c.Context(), l)
	if err != nil {
		return remoteToHTTP(err)
	}

	user, err := s.resolveUser(c.Context(), l, class)
	if err != nil {
		return remoteToHTTP(err)
	}

	activity, err := registry.ResolveActivity(s.db, class, l.resourceID(), qsheet)
	if err != nil {
		if errors.Is(err, registry.ErrMappingConflict) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}

	sourcedID := l.form.Get("lis_result_sourcedid")
	outcomeURL := l.form.Get("lis_outcome_service_url")
	if sourcedID != "" && outcomeURL != "" {
		if _, err := gradelink.Upsert(s.db, user.ID, activity.ID, sourcedID, outcomeURL); err != nil {
			return err
		}
	}

	return c.Redirect(sheetURL(l.provider, class.QClass, qsheet), fiber.StatusSeeOther)
}

// remoteToHTTP maps WIMS failures to 502, everything else passes through.
func remoteToHTTP(err error) error {
	var remoteErr *wims.RemoteError
	if errors.As(err, &remoteErr) {
		return fiber.NewError(fiber.StatusBadGateway, remoteErr.Error())
	}
	return err
}

func personName(form url.Values) string {
	name := strings.TrimSpace(form.Get("lis_person_name_given") + " " + form.Get("lis_person_name_family"))
	if name == "" {
		name = form.Get("lis_person_name_full")
	}
	return name
}

func launchLang(form url.Values) string {
	locale := form.Get("launch_presentation_locale")
	if len(locale) >= 2 {
		return strings.ToLower(locale[:2])
	}
	return "en"
}

func classURL(p *models.Provider, qclass string) string {
	return fmt.Sprintf("%s?class=%s", p.URL, url.QueryEscape(qclass))
}

func sheetURL(p *models.Provider, qclass, qsheet string) string {
	return fmt.Sprintf("%s?class=%s&sh=%s", p.URL, url.QueryEscape(qclass), url.QueryEscape(qsheet))
}
