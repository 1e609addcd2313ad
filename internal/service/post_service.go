package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
	"github.com/thtun0709/beswd/pkg/sanitize"
)

var (
	ErrPostNotFound    = apperr.New(apperr.KindNotFound, 20501, "post_not_found", "帖子不存在")
	ErrCommentNotFound = apperr.New(apperr.KindNotFound, 20502, "comment_not_found", "评论不存在")
	ErrEmptyContent    = apperr.New(apperr.KindInvalidInput, 20503, "empty_content", "内容清洗后为空")
)

// PostService 帖子与评论业务接口
type PostService interface {
	Create(ctx context.Context, p policy.Principal, req *dto.CreatePostRequest) (*dto.PostResponse, error)
	Get(ctx context.Context, id string) (*dto.PostResponse, error)
	List(ctx context.Context, req *dto.PostListRequest) ([]dto.PostResponse, int64, error)
	Update(ctx context.Context, p policy.Principal, id string, req *dto.UpdatePostRequest) (*dto.PostResponse, error)
	Delete(ctx context.Context, p policy.Principal, id string) error

	AddComment(ctx context.Context, p policy.Principal, postID string, req *dto.CreateCommentRequest) (*dto.CommentResponse, error)
	DeleteComment(ctx context.Context, p policy.Principal, commentID string) error
}

type postService struct {
	repo       *repository.Repository
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewPostService 创建 PostService 实例
func NewPostService(repo *repository.Repository, dispatcher notify.Dispatcher, logger *zap.Logger) PostService {
	return &postService{repo: repo, dispatcher: dispatcher, logger: logger}
}

func (s *postService) Create(ctx context.Context, p policy.Principal, req *dto.CreatePostRequest) (*dto.PostResponse, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	title, content := sanitize.Text(req.Title), sanitize.HTML(req.Content)
	if title == "" || content == "" {
		return nil, ErrEmptyContent
	}

	post := &model.Post{
		PostID:     uuid.NewString(),
		AuthorID:   p.ID,
		AuthorRole: p.Role,
		Title:      title,
		Content:    content,
	}
	if err := s.repo.Post.Create(ctx, post); err != nil {
		return nil, storageErr(s.logger, "创建帖子失败", err, zap.String("author_id", p.ID))
	}

	resp := postToResponse(post)
	s.broadcast(ctx, notify.EventPostCreated, resp)
	return resp, nil
}

func (s *postService) Get(ctx context.Context, id string) (*dto.PostResponse, error) {
	post, err := s.repo.Post.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, storageErr(s.logger, "查询帖子失败", err, zap.String("post_id", id))
	}
	return postToResponse(post), nil
}

func (s *postService) List(ctx context.Context, req *dto.PostListRequest) ([]dto.PostResponse, int64, error) {
	posts, total, err := s.repo.Post.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		return nil, 0, storageErr(s.logger, "查询帖子列表失败", err)
	}
	result := make([]dto.PostResponse, 0, len(posts))
	for i := range posts {
		result = append(result, *postToResponse(&posts[i]))
	}
	return result, total, nil
}

func (s *postService) Update(ctx context.Context, p policy.Principal, id string, req *dto.UpdatePostRequest) (*dto.PostResponse, error) {
	post, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		post.Title = sanitize.Text(*req.Title)
	}
	if req.Content != nil {
		post.Content = sanitize.HTML(*req.Content)
	}
	if post.Title == "" || post.Content == "" {
		return nil, ErrEmptyContent
	}

	if err := s.repo.Post.Update(ctx, post); err != nil {
		return nil, storageErr(s.logger, "更新帖子失败", err, zap.String("post_id", id))
	}
	resp := postToResponse(post)
	s.broadcast(ctx, notify.EventPostUpdated, resp)
	return resp, nil
}

func (s *postService) Delete(ctx context.Context, p policy.Principal, id string) error {
	if _, err := s.loadOwned(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Post.Delete(ctx, id); err != nil {
		return storageErr(s.logger, "删除帖子失败", err, zap.String("post_id", id))
	}
	s.broadcast(ctx, notify.EventPostDeleted, map[string]string{"post_id": id})
	return nil
}

// ────────────────────── 评论 ──────────────────────

func (s *postService) AddComment(ctx context.Context, p policy.Principal, postID string, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	content := sanitize.Text(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if _, err := s.repo.Post.GetByID(ctx, postID); err != nil {
		if isNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, storageErr(s.logger, "查询帖子失败", err, zap.String("post_id", postID))
	}

	comment := &model.Comment{
		CommentID:  uuid.NewString(),
		PostID:     postID,
		AuthorID:   p.ID,
		AuthorRole: p.Role,
		Content:    content,
	}
	if err := s.repo.Post.CreateComment(ctx, comment); err != nil {
		return nil, storageErr(s.logger, "创建评论失败", err, zap.String("post_id", postID))
	}

	resp := commentToResponse(comment)
	s.broadcast(ctx, notify.EventCommentCreated, resp)
	return resp, nil
}

func (s *postService) DeleteComment(ctx context.Context, p policy.Principal, commentID string) error {
	if err := policy.RequireAuthenticated(p); err != nil {
		return err
	}
	comment, err := s.repo.Post.GetComment(ctx, commentID)
	if err != nil {
		if isNotFound(err) {
			return ErrCommentNotFound
		}
		return storageErr(s.logger, "查询评论失败", err, zap.String("comment_id", commentID))
	}
	if err := policy.RequireAuthorOrAdmin(p, comment.AuthorID, comment.AuthorRole); err != nil {
		return err
	}
	if err := s.repo.Post.DeleteComment(ctx, commentID); err != nil {
		return storageErr(s.logger, "删除评论失败", err, zap.String("comment_id", commentID))
	}
	s.broadcast(ctx, notify.EventCommentDeleted, map[string]string{
		"comment_id": commentID,
		"post_id":    comment.PostID,
	})
	return nil
}

// ── 辅助函数 ──

func (s *postService) loadOwned(ctx context.Context, p policy.Principal, id string) (*model.Post, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	post, err := s.repo.Post.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, storageErr(s.logger, "查询帖子失败", err, zap.String("post_id", id))
	}
	if err := policy.RequireAuthorOrAdmin(p, post.AuthorID, post.AuthorRole); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postService) broadcast(ctx context.Context, event notify.Event, payload any) {
	var batch notify.Batch
	batch.Broadcast(event, payload)
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
}

func postToResponse(p *model.Post) *dto.PostResponse {
	resp := &dto.PostResponse{
		ID:         p.PostID,
		AuthorID:   p.AuthorID,
		AuthorRole: p.AuthorRole,
		Title:      p.Title,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	for i := range p.Comments {
		resp.Comments = append(resp.Comments, *commentToResponse(&p.Comments[i]))
	}
	return resp
}

func commentToResponse(c *model.Comment) *dto.CommentResponse {
	return &dto.CommentResponse{
		ID:         c.CommentID,
		PostID:     c.PostID,
		AuthorID:   c.AuthorID,
		AuthorRole: c.AuthorRole,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}
