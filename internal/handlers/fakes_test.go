package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/postboard/backend/internal/middleware"
	"github.com/anonto42/postboard/backend/internal/models"
	"github.com/anonto42/postboard/backend/internal/repositories"
	"github.com/anonto42/postboard/backend/internal/uploads"
	"github.com/anonto42/postboard/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "handlers-test-secret"

// memStore is an in-memory stand-in for the MongoDB post, comment and user
// repositories with the same error contract.
type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	posts    map[primitive.ObjectID]*models.Post
	users    map[primitive.ObjectID]*models.User
	comments map[primitive.ObjectID]*models.Comment
	err      error // returned by every call when set
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		posts:    map[primitive.ObjectID]*models.Post{},
		users:    map[primitive.ObjectID]*models.User{},
		comments: map[primitive.ObjectID]*models.Comment{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func parseID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", repositories.ErrInvalidID, id)
	}
	return objID, nil
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Keywords = append([]string{}, p.Keywords...)
	cp.Images = append([]string{}, p.Images...)
	cp.Likes = append([]primitive.ObjectID{}, p.Likes...)
	cp.CommentIDs = append([]primitive.ObjectID{}, p.CommentIDs...)
	return &cp
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.PostIDs = append([]primitive.ObjectID{}, u.PostIDs...)
	cp.LikesList = append([]primitive.ObjectID{}, u.LikesList...)
	return &cp
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := []primitive.ObjectID{}
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// --- seeding helpers ---

func (s *memStore) addUser(name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{
		ID:        primitive.NewObjectID(),
		Username:  name,
		Email:     name + "@example.com",
		PostIDs:   []primitive.ObjectID{},
		LikesList: []primitive.ObjectID{},
		CreatedAt: s.tick(),
	}
	s.users[u.ID] = u
	return cloneUser(u)
}

func (s *memStore) addPost(author *models.User, title string, keywords ...string) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	p := &models.Post{
		ID:         primitive.NewObjectID(),
		Title:      title,
		Keywords:   append([]string{}, keywords...),
		Images:     []string{},
		UserID:     author.ID,
		Likes:      []primitive.ObjectID{},
		CommentIDs: []primitive.ObjectID{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.posts[p.ID] = p
	s.users[author.ID].PostIDs = append(s.users[author.ID].PostIDs, p.ID)
	return clonePost(p)
}

func (s *memStore) addComment(post *models.Post, author *models.User, body string) *models.Comment {
	c := &models.Comment{PostID: post.ID, UserID: author.ID, Body: body}
	if err := s.CreateComment(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}

func (s *memStore) post(id primitive.ObjectID) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	return clonePost(p)
}

func (s *memStore) user(id primitive.ObjectID) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.users[id])
}

func (s *memStore) commentCount(postID primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n
}

// --- repositories.PostRepository ---

func (s *memStore) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	author, ok := s.users[post.UserID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	now := s.tick()
	post.ID = primitive.NewObjectID()
	post.CreatedAt, post.UpdatedAt = now, now
	post.Likes = []primitive.ObjectID{}
	post.CommentIDs = []primitive.ObjectID{}
	if post.Images == nil {
		post.Images = []string{}
	}
	s.posts[post.ID] = clonePost(post)
	author.PostIDs = append(author.PostIDs, post.ID)
	return nil
}

func (s *memStore) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	objID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, ok := s.posts[objID]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	return clonePost(p), nil
}

func (s *memStore) sortedPosts() []*models.Post {
	posts := make([]*models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts
}

func (s *memStore) ListPosts(_ context.Context, skip, limit int64) ([]models.PostView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	all := s.sortedPosts()
	views := []models.PostView{}
	for i := skip; i < int64(len(all)) && i < skip+limit; i++ {
		p := all[i]
		view := models.PostView{
			ID: p.ID, Title: p.Title, Body: p.Body, Keywords: p.Keywords, Images: p.Images,
			Likes: p.Likes, Comments: []models.CommentView{}, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
		}
		if u, ok := s.users[p.UserID]; ok {
			compact := models.UserCompact{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
			view.Author = &compact
		}
		for _, cid := range p.CommentIDs {
			c := s.comments[cid]
			cv := models.CommentView{ID: c.ID, Body: c.Body, PostID: c.PostID, CreatedAt: c.CreatedAt}
			if u, ok := s.users[c.UserID]; ok {
				compact := models.UserCompact{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
				cv.Author = &compact
			}
			view.Comments = append(view.Comments, cv)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *memStore) CountPosts(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.posts)), nil
}

func (s *memStore) filterPosts(match func(*models.Post) bool) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []models.Post{}
	for _, p := range s.sortedPosts() {
		if match(p) {
			out = append(out, *clonePost(p))
		}
	}
	return out, nil
}

func (s *memStore) SearchByTitle(_ context.Context, title string) ([]models.Post, error) {
	needle := strings.ToLower(title)
	return s.filterPosts(func(p *models.Post) bool {
		return strings.Contains(strings.ToLower(p.Title), needle)
	})
}

func (s *memStore) SearchByKeywords(_ context.Context, keywords []string) ([]models.Post, error) {
	return s.filterPosts(func(p *models.Post) bool {
		for _, have := range p.Keywords {
			for _, want := range keywords {
				if have == want {
					return true
				}
			}
		}
		return false
	})
}

func (s *memStore) UpdatePost(_ context.Context, id string, update models.PostUpdate) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	objID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, ok := s.posts[objID]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	if update.Title != nil {
		p.Title = *update.Title
	}
	if update.Body != nil {
		p.Body = *update.Body
	}
	if update.Keywords != nil {
		p.Keywords = update.Keywords
	}
	p.UpdatedAt = s.tick()
	return clonePost(p), nil
}

func (s *memStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	objID, err := parseID(id)
	if err != nil {
		return err
	}
	p, ok := s.posts[objID]
	if !ok {
		return repositories.ErrPostNotFound
	}
	delete(s.posts, objID)
	for cid, c := range s.comments {
		if c.PostID == objID {
			delete(s.comments, cid)
		}
	}
	if author, ok := s.users[p.UserID]; ok {
		author.PostIDs = without(author.PostIDs, objID)
	}
	for _, u := range s.users {
		u.LikesList = without(u.LikesList, objID)
	}
	return nil
}

func (s *memStore) LikePost(_ context.Context, postID, userID string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	pid, err := parseID(postID)
	if err != nil {
		return nil, err
	}
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	p, ok := s.posts[pid]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	if contains(p.Likes, uid) {
		return nil, repositories.ErrAlreadyLiked
	}
	u, ok := s.users[uid]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	p.Likes = append(p.Likes, uid)
	if !contains(u.LikesList, pid) {
		u.LikesList = append(u.LikesList, pid)
	}
	return clonePost(p), nil
}

func (s *memStore) UnlikePost(_ context.Context, postID, userID string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	pid, err := parseID(postID)
	if err != nil {
		return nil, err
	}
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	p, ok := s.posts[pid]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	p.Likes = without(p.Likes, uid)
	if u, ok := s.users[uid]; ok {
		u.LikesList = without(u.LikesList, pid)
	}
	return clonePost(p), nil
}

// --- repositories.CommentRepository ---

func (s *memStore) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	p, ok := s.posts[comment.PostID]
	if !ok {
		return repositories.ErrPostNotFound
	}
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = s.tick()
	cp := *comment
	s.comments[comment.ID] = &cp
	p.CommentIDs = append(p.CommentIDs, comment.ID)
	return nil
}

func (s *memStore) GetCommentByID(_ context.Context, id string) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	objID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	c, ok := s.comments[objID]
	if !ok {
		return nil, repositories.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) GetCommentsByPostID(_ context.Context, postID string) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	objID, err := parseID(postID)
	if err != nil {
		return nil, err
	}
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.PostID == objID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) DeleteComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.comments[comment.ID]; !ok {
		return repositories.ErrCommentNotFound
	}
	delete(s.comments, comment.ID)
	if p, ok := s.posts[comment.PostID]; ok {
		p.CommentIDs = without(p.CommentIDs, comment.ID)
	}
	return nil
}

// --- repositories.UserRepository ---

func (s *memStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicateEmail
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = s.tick()
	user.PostIDs = []primitive.ObjectID{}
	user.LikesList = []primitive.ObjectID{}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *memStore) findUser(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	objID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(func(u *models.User) bool { return u.ID == objID })
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Email == email })
}

func (s *memStore) GetUserByFirebaseUID(_ context.Context, firebaseUID string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.FirebaseUID != "" && u.FirebaseUID == firebaseUID })
}

func (s *memStore) SetFirebaseUID(_ context.Context, id primitive.ObjectID, firebaseUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.FirebaseUID = firebaseUID
	return nil
}

// memNotifications implements repositories.NotificationRepository.
type memNotifications struct {
	mu     sync.Mutex
	items  []models.Notification
	nextID uint
	err    error
}

func (m *memNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	n.ID = m.nextID
	n.CreatedAt = time.Now()
	m.items = append(m.items, *n)
	return nil
}

func (m *memNotifications) forRecipient(recipientID string) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].RecipientID == recipientID {
			out = append(out, m.items[i])
		}
	}
	return out
}

func (m *memNotifications) GetByRecipientID(_ context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	all := m.forRecipient(recipientID)
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (m *memNotifications) GetUnreadCount(_ context.Context, recipientID string) (int64, error) {
	var n int64
	for _, item := range m.forRecipient(recipientID) {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) MarkAsRead(_ context.Context, id uint, recipientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].RecipientID == recipientID {
			m.items[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) MarkAllAsRead(_ context.Context, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].RecipientID == recipientID {
			m.items[i].IsRead = true
		}
	}
	return nil
}

// memSaved implements repositories.SavedPostRepository.
type memSaved struct {
	mu     sync.Mutex
	items  []models.SavedPost
	nextID uint
}

func (m *memSaved) SavePost(_ context.Context, userID, postID string) (*models.SavedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.UserID == userID && s.PostID == postID {
			return nil, repositories.ErrAlreadySaved
		}
	}
	m.nextID++
	saved := models.SavedPost{ID: m.nextID, UserID: userID, PostID: postID, CreatedAt: time.Now()}
	m.items = append(m.items, saved)
	return &saved, nil
}

func (m *memSaved) UnsavePost(_ context.Context, userID, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.items {
		if s.UserID == userID && s.PostID == postID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotSaved
}

func (m *memSaved) GetSavedPostsByUser(_ context.Context, userID string) ([]models.SavedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SavedPost{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memSaved) RemovePost(_ context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	for _, s := range m.items {
		if s.PostID != postID {
			kept = append(kept, s)
		}
	}
	m.items = kept
	return nil
}

// --- test server ---

type testEnv struct {
	e             *echo.Echo
	store         *memStore
	notifications *memNotifications
	saved         *memSaved
	uploadDir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithVerifier(t, nil)
}

func newTestEnvWithVerifier(t *testing.T, verifier middleware.IDTokenVerifier) *testEnv {
	t.Helper()
	e := echo.New()
	e.Validator = validators.NewValidator()

	store := newMemStore()
	notifications := &memNotifications{}
	saved := &memSaved{}
	dir := t.TempDir()
	files, err := uploads.NewStore(dir)
	require.NoError(t, err)

	auth := middleware.JWTAuthMiddleware(testSecret)
	api := e.Group("/api/v1")
	NewAuthHandler(store, verifier, testSecret).RegisterAuthRoutes(api.Group("/auth"))
	NewUserHandler(store).RegisterProfileRoutes(api, auth)
	NewPostHandler(store, files).RegisterPostRoutes(api, auth)
	NewLikeHandler(store, notifications).RegisterLikeRoutes(api, auth)
	NewCommentHandler(store, store, notifications).RegisterCommentRoutes(api, auth)
	NewSavedPostHandler(saved, store).RegisterSavedPostRoutes(api, auth)
	NewNotificationHandler(notifications).RegisterNotificationRoutes(api, auth)

	return &testEnv{e: e, store: store, notifications: notifications, saved: saved, uploadDir: dir}
}

func tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := (&AuthHandler{jwtSecret: testSecret}).generateJWT(user)
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if user != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, user))
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, path string, payload interface{}, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
		contentType = echo.MIMEApplicationJSON
	}
	return env.do(t, method, path, body, contentType, user)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (io.Reader, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type messageResponse struct {
	Message string `json:"message"`
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
