package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/events"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/security/secretbox"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store/storetest"
)

type staticSettings map[string]string

func (s staticSettings) Load(context.Context) (settings.Values, error) {
	return settings.NewValues(s), nil
}

type fixture struct {
	svc    Service
	dal    store.DataAccessLayer
	box    *secretbox.Box
	events *events.Recorder
}

func newFixture(t *testing.T, cfg staticSettings) *fixture {
	t.Helper()
	dal := storetest.Open(t)
	rec := &events.Recorder{}
	box := secretbox.New("test-secret")
	svc := NewService(Deps{
		Users:    dal.Users(),
		Links:    dal.Links(),
		Settings: cfg,
		Box:      box,
		Events:   rec,
	})
	return &fixture{svc: svc, dal: dal, box: box, events: rec}
}

func profile(id, nick string) *types.ProviderProfile {
	return &types.ProviderProfile{
		ProviderUserID: id,
		ProviderOpenID: "open-" + id,
		OrganizationID: "corp-1",
		DisplayName:    nick,
		AvatarURL:      "https://img.example/" + id + ".png",
		Mobile:         "13800000000",
		Email:          id + "@corp.example",
	}
}

func TestResolveOrCreate_RegistersOnFirstLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{})

	res, err := f.svc.ResolveOrCreate(ctx, profile("union-1", "张三 Zhang!"))
	require.NoError(t, err)
	require.True(t, res.Registered)

	assert.Equal(t, "张三Zhang", res.User.Username)
	assert.Equal(t, placeholderEmail("union-1"), res.User.Email)
	assert.True(t, strings.HasSuffix(res.User.Email, "@dingtalk.local"))
	assert.True(t, res.User.EmailConfirmed)
	assert.Equal(t, "https://img.example/union-1.png", res.User.AvatarURL)

	link, err := f.dal.Links().GetByProviderUserID(ctx, "union-1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, link.UserID)
	assert.NotEqual(t, "13800000000", link.MobileEncrypted)
	mobile, err := f.box.Decrypt(link.MobileEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "13800000000", mobile)

	require.Equal(t, []string{events.TopicIdentityLinked}, f.events.Topics())
	ev := f.events.Events[0].Payload.(events.IdentityLinked)
	assert.True(t, ev.Registered)
	assert.Equal(t, "union-1", ev.ProviderUserID)
}

func TestResolveOrCreate_ExistingLinkPartialRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{})

	first, err := f.svc.ResolveOrCreate(ctx, profile("union-1", "alice"))
	require.NoError(t, err)
	before, err := f.dal.Links().GetByProviderUserID(ctx, "union-1")
	require.NoError(t, err)

	// Segundo login sin móvil ni email: no deben borrarse.
	res, err := f.svc.ResolveOrCreate(ctx, &types.ProviderProfile{
		ProviderUserID: "union-1",
		AvatarURL:      "https://img.example/new.png",
	})
	require.NoError(t, err)
	assert.False(t, res.Registered)
	assert.Equal(t, first.User.ID, res.User.ID)

	after, err := f.dal.Links().GetByProviderUserID(ctx, "union-1")
	require.NoError(t, err)
	assert.Equal(t, before.MobileEncrypted, after.MobileEncrypted)
	assert.Equal(t, before.EmailEncrypted, after.EmailEncrypted)
	assert.Equal(t, "alice", after.DisplayName)
	assert.Equal(t, "https://img.example/new.png", after.AvatarURL)

	u, err := f.dal.Users().GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/new.png", u.AvatarURL)

	// Sólo el registro emite identity.linked.
	assert.Equal(t, []string{events.TopicIdentityLinked}, f.events.Topics())
}

func TestResolveOrCreate_RegistrationDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{settings.KeyAutoRegister: "0"})

	_, err := f.svc.ResolveOrCreate(ctx, profile("union-1", "alice"))
	require.ErrorIs(t, err, autherr.ErrRegistrationDisabled)

	n, err := f.dal.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.events.Topics())
}

func TestResolveOrCreate_MissingIdentity(t *testing.T) {
	f := newFixture(t, staticSettings{})
	_, err := f.svc.ResolveOrCreate(context.Background(), &types.ProviderProfile{DisplayName: "x"})
	assert.ErrorIs(t, err, autherr.ErrMissingProviderIdentity)
}

func TestResolveOrCreate_UsernameRules(t *testing.T) {
	ctx := context.Background()

	t.Run("nickname dedupe", func(t *testing.T) {
		f := newFixture(t, staticSettings{})
		a, err := f.svc.ResolveOrCreate(ctx, profile("u-a", "bob"))
		require.NoError(t, err)
		b, err := f.svc.ResolveOrCreate(ctx, profile("u-b", "bob"))
		require.NoError(t, err)
		c, err := f.svc.ResolveOrCreate(ctx, profile("u-c", "bob"))
		require.NoError(t, err)
		assert.Equal(t, "bob", a.User.Username)
		assert.Equal(t, "bob_1", b.User.Username)
		assert.Equal(t, "bob_2", c.User.Username)
	})

	t.Run("nickname without usable runes", func(t *testing.T) {
		f := newFixture(t, staticSettings{})
		res, err := f.svc.ResolveOrCreate(ctx, profile("u-a", "!!! ???"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.User.Username, "dingtalk_"))
		assert.Len(t, res.User.Username, len("dingtalk_")+6)
	})

	t.Run("random", func(t *testing.T) {
		f := newFixture(t, staticSettings{settings.KeyUsernameRule: "random"})
		res, err := f.svc.ResolveOrCreate(ctx, profile("u-a", "bob"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.User.Username, "dingtalk_"))
		assert.Len(t, res.User.Username, len("dingtalk_")+8)
	})
}

func TestResolveOrCreate_EmailSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{settings.KeySyncEmail: "1"})

	taken := &repository.User{Username: "owner", Email: "u-b@corp.example"}
	require.NoError(t, f.dal.Users().Create(ctx, taken))

	a, err := f.svc.ResolveOrCreate(ctx, profile("u-a", "a"))
	require.NoError(t, err)
	assert.Equal(t, "u-a@corp.example", a.User.Email)

	// Email real ya usado: cae al placeholder.
	b, err := f.svc.ResolveOrCreate(ctx, profile("u-b", "b"))
	require.NoError(t, err)
	assert.Equal(t, placeholderEmail("u-b"), b.User.Email)
}

// racyLinks simula que otro request vinculó la identidad entre el lookup y el insert.
type racyLinks struct {
	repository.LinkRepository
}

func (racyLinks) GetByProviderUserID(context.Context, string) (*repository.IdentityLink, error) {
	return nil, repository.ErrNotFound
}

func TestResolveOrCreate_LinkRaceCompensates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{})

	_, err := f.svc.ResolveOrCreate(ctx, profile("union-1", "winner"))
	require.NoError(t, err)

	racy := NewService(Deps{
		Users:    f.dal.Users(),
		Links:    racyLinks{f.dal.Links()},
		Settings: staticSettings{},
		Box:      f.box,
	})
	_, err = racy.ResolveOrCreate(ctx, profile("union-1", "loser"))
	require.ErrorIs(t, err, autherr.ErrAlreadyLinked)
	assert.Equal(t, autherr.CodeAlreadyLinked, autherr.Classify(err))

	n, err := f.dal.Users().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "the fresh account must be removed")
}

func TestBind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{})

	alice := &repository.User{Username: "alice", Email: "alice@example.com"}
	bob := &repository.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, f.dal.Users().Create(ctx, alice))
	require.NoError(t, f.dal.Users().Create(ctx, bob))

	link, err := f.svc.Bind(ctx, alice, profile("union-1", "Alice DT"))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, link.UserID)

	bound, err := f.svc.IsBound(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, bound)

	_, err = f.svc.Bind(ctx, alice, profile("union-2", "other"))
	assert.ErrorIs(t, err, autherr.ErrUserAlreadyLinked)
	assert.ErrorIs(t, err, autherr.ErrAlreadyLinked)

	_, err = f.svc.Bind(ctx, bob, profile("union-1", "Alice DT"))
	assert.ErrorIs(t, err, autherr.ErrProviderIdentityAlreadyLinked)
	assert.Equal(t, autherr.CodeProviderAlreadyLinked, autherr.Classify(err))

	// Bind nunca crea usuarios.
	n, err := f.dal.Users().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	contact, err := f.svc.RevealContact(link)
	require.NoError(t, err)
	assert.Equal(t, "13800000000", contact.Mobile)
	assert.Equal(t, "union-1@corp.example", contact.Email)
}

func TestUnbind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{})

	res, err := f.svc.ResolveOrCreate(ctx, profile("union-1", "alice"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Unbind(ctx, res.User))
	assert.Equal(t, []string{events.TopicIdentityLinked, events.TopicIdentityUnlinked}, f.events.Topics())

	bound, err := f.svc.IsBound(ctx, res.User.ID)
	require.NoError(t, err)
	assert.False(t, bound)

	assert.ErrorIs(t, f.svc.Unbind(ctx, res.User), autherr.ErrNotLinked)
	_, err = f.svc.LinkFor(ctx, res.User.ID)
	assert.ErrorIs(t, err, autherr.ErrNotLinked)
}

func TestUnbindLink_Admin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{})

	res, err := f.svc.ResolveOrCreate(ctx, profile("union-1", "alice"))
	require.NoError(t, err)

	require.NoError(t, f.svc.UnbindLink(ctx, res.Link.ID))
	last := f.events.Events[len(f.events.Events)-1]
	ev := last.Payload.(events.IdentityUnlinked)
	assert.True(t, ev.ByAdmin)
	assert.Equal(t, "alice", ev.Username)

	assert.ErrorIs(t, f.svc.UnbindLink(ctx, res.Link.ID), autherr.ErrNotLinked)
	assert.ErrorIs(t, f.svc.UnbindLink(ctx, "does-not-exist"), autherr.ErrNotLinked)
}

func TestIsExempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{settings.KeyExemptUsers: " carol , dave,"})

	cases := []struct {
		user *repository.User
		want bool
	}{
		{&repository.User{Username: "root", IsAdmin: true}, true},
		{&repository.User{Username: "carol"}, true},
		{&repository.User{Username: "dave"}, true},
		{&repository.User{Username: "Carol"}, true},
		{&repository.User{Username: "DAVE"}, true},
		{&repository.User{Username: "eve"}, false},
		{nil, false},
	}
	for _, tc := range cases {
		got, err := f.svc.IsExempt(ctx, tc.user)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticSettings{})

	require.NoError(t, f.dal.Users().Create(ctx, &repository.User{Username: "native", Email: "n@example.com"}))
	_, err := f.svc.ResolveOrCreate(ctx, profile("union-1", "alice"))
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalUsers)
	assert.EqualValues(t, 1, st.BoundUsers)

	rows, total, err := f.svc.ListLinks(ctx, repository.LinkFilter{Search: "ali", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Username)
}

func TestSanitizeNickname(t *testing.T) {
	assert.Equal(t, "李四_li", sanitizeNickname("李四 _li-"))
	assert.Equal(t, "", sanitizeNickname("🙂🙂"))
	assert.Len(t, []rune(sanitizeNickname(strings.Repeat("a", 60))), maxBaseRunes)
}
