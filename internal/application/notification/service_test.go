package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-session-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, htmlBody string) error {
	return m.Called(to, subject, htmlBody).Error(0)
}

type mockTemplates struct{ mock.Mock }

func (m *mockTemplates) Fetch(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func newTestService(m *mockMailer, tpl templateSource) Service {
	return NewService(ServiceDeps{
		Mailer:    m,
		Templates: tpl,
		BaseURL:   "http://localhost:3000",
		OTPTTL:    10 * time.Minute,
		ResetTTL:  10 * time.Minute,
	})
}

var alice = &domain.User{UserID: "u1", Name: "Alice", Email: "alice@x.com"}

// --- tests ---

func TestSendOTP_Subjects(t *testing.T) {
	cases := map[bool]string{false: SubjectOTP, true: SubjectResendOTP}
	for resend, subject := range cases {
		m := new(mockMailer)
		svc := newTestService(m, nil)
		var body string
		m.On("SendEmail", "alice@x.com", subject, mock.Anything).Run(func(args mock.Arguments) {
			body = args.String(2)
		}).Return(nil)

		require.NoError(t, svc.SendOTP(context.Background(), alice, "123456", resend))
		assert.Contains(t, body, "123456")
		assert.Contains(t, body, "Alice")
		assert.Contains(t, body, "10 minutes")
	}
}

func TestSendPasswordReset_Link(t *testing.T) {
	m := new(mockMailer)
	svc := newTestService(m, nil)
	var body string
	m.On("SendEmail", "alice@x.com", SubjectReset, mock.Anything).Run(func(args mock.Arguments) {
		body = args.String(2)
	}).Return(nil)

	require.NoError(t, svc.SendPasswordReset(context.Background(), alice, "abc123"))
	assert.Contains(t, body, `href="http://localhost:3000/reset-password?token=abc123"`)
}

func TestSend_DeliveryError(t *testing.T) {
	m := new(mockMailer)
	svc := newTestService(m, nil)
	m.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	err := svc.SendOTP(context.Background(), alice, "123456", false)
	assert.ErrorIs(t, err, domain.ErrDelivery)
}

func TestRender_EscapesName(t *testing.T) {
	m := new(mockMailer)
	svc := newTestService(m, nil)
	var body string
	m.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		body = args.String(2)
	}).Return(nil)

	u := &domain.User{Name: "<script>x</script>", Email: "a@b.com"}
	require.NoError(t, svc.SendOTP(context.Background(), u, "123456", false))
	assert.NotContains(t, body, "<script>")
}

func TestRender_Override(t *testing.T) {
	m := new(mockMailer)
	tpl := new(mockTemplates)
	svc := newTestService(m, tpl)
	tpl.On("Fetch", mock.Anything, templateOTP).Return("<b>code {{.Code}}</b>", nil)
	m.On("SendEmail", "alice@x.com", SubjectOTP, "<b>code 123456</b>").Return(nil)

	require.NoError(t, svc.SendOTP(context.Background(), alice, "123456", false))
	m.AssertExpectations(t)
}

func TestRender_OverrideFallsBack(t *testing.T) {
	cases := map[string][]interface{}{
		"unavailable": {"", domain.ErrNotFound},
		"broken":      {"{{.Code", nil},
	}
	for name, ret := range cases {
		t.Run(name, func(t *testing.T) {
			m := new(mockMailer)
			tpl := new(mockTemplates)
			svc := newTestService(m, tpl)
			tpl.On("Fetch", mock.Anything, templateOTP).Return(ret...)
			var body string
			m.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				body = args.String(2)
			}).Return(nil)

			require.NoError(t, svc.SendOTP(context.Background(), alice, "123456", false))
			assert.Contains(t, body, "Thanks for signing up")
		})
	}
}
