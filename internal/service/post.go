package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/flatblog/internal/apperror"
	"github.com/sakif/flatblog/internal/clock"
	"github.com/sakif/flatblog/internal/model"
	"github.com/sakif/flatblog/internal/repository"
)

// PostService handles business logic for blog posts.
type PostService struct {
	repo   repository.PostRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewPostService(repo repository.PostRepository, clk clock.Clock, logger *slog.Logger) *PostService {
	return &PostService{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

// List returns every post in stored order.
func (s *PostService) List(ctx context.Context) ([]model.Post, error) {
	posts, err := s.repo.LoadPosts(ctx)
	if err != nil {
		s.logger.Error("failed to load posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// Get returns the post with the given id, or apperror.ErrNotFound.
func (s *PostService) Get(ctx context.Context, id int) (*model.Post, error) {
	posts, err := s.repo.LoadPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting post %d: %w", id, err)
	}

	i := indexOf(posts, id)
	if i < 0 {
		return nil, apperror.NotFound("post", strconv.Itoa(id))
	}
	post := posts[i]
	return &post, nil
}

// Create stores a new post written by author.
//
// Title and content are stored as given; either may be empty.
//
// ID ASSIGNMENT:
// The new ID is one more than the larger of the stored high-water mark and
// the highest ID still present (1 for an empty blog). The mark is saved
// before the posts, so a failed posts write costs at most an unused ID and
// a deleted post's ID is never handed out again.
func (s *PostService) Create(ctx context.Context, title, content, author string) (*model.Post, error) {
	if author == "" {
		return nil, apperror.Unauthorized("you need to login first")
	}

	posts, err := s.repo.LoadPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	meta, err := s.repo.LoadMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	id := highWater(meta, posts) + 1
	if err := s.repo.SaveMeta(ctx, repository.PostMeta{LastPostID: id}); err != nil {
		s.logger.Error("failed to save post meta",
			slog.Int("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	post := model.Post{
		ID:         id,
		Title:      title,
		Content:    content,
		Author:     author,
		DatePosted: s.clock.Now().Format(model.DateLayout),
	}

	posts = append(posts, post)
	if err := s.repo.SavePosts(ctx, posts); err != nil {
		s.logger.Error("failed to save posts",
			slog.Int("id", post.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int("id", post.ID),
		slog.String("author", author),
	)
	return &post, nil
}

// Delete removes a post, but only for its author.
//
// Returns apperror.ErrNotFound if no post has the id and
// apperror.ErrForbidden if requester is not the author. In both cases
// nothing is written.
func (s *PostService) Delete(ctx context.Context, id int, requester string) error {
	posts, err := s.repo.LoadPosts(ctx)
	if err != nil {
		return fmt.Errorf("deleting post %d: %w", id, err)
	}

	i := indexOf(posts, id)
	if i < 0 {
		return apperror.NotFound("post", strconv.Itoa(id))
	}
	if requester == "" || posts[i].Author != requester {
		s.logger.Warn("delete refused: not the author",
			slog.Int("id", id),
			slog.String("author", posts[i].Author),
			slog.String("requester", requester),
		)
		return apperror.Forbidden("you can only delete your own posts")
	}

	// Posts seeded or written before the meta document existed carry IDs
	// the mark has never seen; record them before one disappears.
	if err := s.raiseHighWater(ctx, posts); err != nil {
		return fmt.Errorf("deleting post %d: %w", id, err)
	}

	remaining := make([]model.Post, 0, len(posts)-1)
	for _, p := range posts {
		if p.ID != id {
			remaining = append(remaining, p)
		}
	}

	if err := s.repo.SavePosts(ctx, remaining); err != nil {
		s.logger.Error("failed to save posts",
			slog.Int("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting post %d: %w", id, err)
	}

	s.logger.Info("post deleted", slog.Int("id", id), slog.String("author", requester))
	return nil
}

// highWater is the highest ID ever assigned: the stored mark or the largest
// ID present, whichever is greater.
func highWater(meta repository.PostMeta, posts []model.Post) int {
	highest := meta.LastPostID
	for _, p := range posts {
		if p.ID > highest {
			highest = p.ID
		}
	}
	return highest
}

func (s *PostService) raiseHighWater(ctx context.Context, posts []model.Post) error {
	meta, err := s.repo.LoadMeta(ctx)
	if err != nil {
		return err
	}
	if mark := highWater(meta, posts); mark > meta.LastPostID {
		return s.repo.SaveMeta(ctx, repository.PostMeta{LastPostID: mark})
	}
	return nil
}

func indexOf(posts []model.Post, id int) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
