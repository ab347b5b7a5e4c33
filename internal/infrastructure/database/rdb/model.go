package rdb

import (
	"time"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/uptrace/bun"
)

// Organization represents the database model for the organizations table.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:org"`

	ID               string            `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	Slug             string            `bun:",notnull,unique,type:varchar(100)"`
	Plan             string            `bun:",notnull,type:varchar(20),default:'free'"`
	MaxUsers         int               `bun:",notnull,default:5"`
	MaxTracks        int               `bun:",notnull,default:1000"`
	FeatureOverrides map[string]bool   `bun:",type:jsonb"`
	CreatedAt        time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
}

func (o *Organization) ToEntity() *entity.Organization {
	return &entity.Organization{
		ID:               o.ID,
		Slug:             o.Slug,
		Plan:             entity.Plan(o.Plan),
		MaxUsers:         o.MaxUsers,
		MaxTracks:        o.MaxTracks,
		FeatureOverrides: o.FeatureOverrides,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func FromNewOrganization(params *entity.NewOrganization) *Organization {
	return &Organization{
		Slug:             params.Slug,
		Plan:             string(params.Plan),
		MaxUsers:         params.MaxUsers,
		MaxTracks:        params.MaxTracks,
		FeatureOverrides: params.FeatureOverrides,
	}
}

// User represents the database model for the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	OrgID         string    `bun:",notnull,type:uuid"`
	Email         string    `bun:",notnull,unique,type:varchar(255)"`
	Username      *string   `bun:",unique,type:varchar(100)"`
	PasswordHash  string    `bun:",notnull,type:text"`
	Role          string    `bun:",notnull,type:varchar(20),default:'user'"`
	IsActive      bool      `bun:",notnull,default:true"`
	EmailVerified bool      `bun:",notnull,default:false"`
	CreatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp"`

	Organization *Organization `bun:"rel:belongs-to,join:org_id=id,on_delete:CASCADE"`
}

func (u *User) ToEntity() *entity.User {
	return &entity.User{
		ID:            u.ID,
		OrgID:         u.OrgID,
		Email:         u.Email,
		Username:      u.Username,
		PasswordHash:  u.PasswordHash,
		Role:          entity.Role(u.Role),
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func FromNewUser(params *entity.NewUser) *User {
	return &User{
		OrgID:        params.OrgID,
		Email:        params.Email,
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		Role:         string(params.Role),
	}
}

// ApiKey represents the database model for the api_keys table.
type ApiKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`

	ID          string     `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	OwnerUserID string     `bun:",notnull,type:uuid"`
	OrgID       string     `bun:",notnull,type:uuid"`
	Hash        string     `bun:",notnull,type:text"`
	Prefix      string     `bun:",notnull,type:varchar(16)"`
	Scopes      []string   `bun:",array,type:text[]"`
	Environment string     `bun:",notnull,type:varchar(20)"`
	LimitPerMin *int       `bun:","`
	LimitPerHr  *int       `bun:","`
	LimitPerDay *int       `bun:","`
	ExpiresAt   *time.Time `bun:","`
	RevokedAt   *time.Time `bun:","`
	LastUsedAt  *time.Time `bun:","`
	IPAllowlist []string   `bun:",array,type:inet[]"`
	CreatedAt   time.Time  `bun:",nullzero,notnull,default:current_timestamp"`

	Owner *User `bun:"rel:belongs-to,join:owner_user_id=id,on_delete:CASCADE"`
}

func (k *ApiKey) ToEntity() *entity.ApiKey {
	return &entity.ApiKey{
		ID:          k.ID,
		OwnerUserID: k.OwnerUserID,
		OrgID:       k.OrgID,
		Hash:        k.Hash,
		Prefix:      k.Prefix,
		Scopes:      k.Scopes,
		Environment: entity.ApiKeyEnvironment(k.Environment),
		Limits: entity.ApiKeyLimits{
			PerMinute: k.LimitPerMin,
			PerHour:   k.LimitPerHr,
			PerDay:    k.LimitPerDay,
		},
		ExpiresAt:   k.ExpiresAt,
		RevokedAt:   k.RevokedAt,
		LastUsedAt:  k.LastUsedAt,
		IPAllowlist: k.IPAllowlist,
		CreatedAt:   k.CreatedAt,
	}
}

func FromNewApiKey(params *entity.NewApiKey) *ApiKey {
	return &ApiKey{
		OwnerUserID: params.OwnerUserID,
		OrgID:       params.OrgID,
		Hash:        params.Hash,
		Prefix:      params.Prefix,
		Scopes:      params.Scopes,
		Environment: string(params.Environment),
		LimitPerMin: params.Limits.PerMinute,
		LimitPerHr:  params.Limits.PerHour,
		LimitPerDay: params.Limits.PerDay,
		ExpiresAt:   params.ExpiresAt,
		IPAllowlist: params.IPAllowlist,
	}
}

// ApiUsageEvent represents the database model for the api_usage_events table.
type ApiUsageEvent struct {
	bun.BaseModel `bun:"table:api_usage_events,alias:aue"`

	ID         string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	KeyID      string    `bun:",notnull,type:uuid"`
	Operation  string    `bun:",notnull,type:varchar(100)"`
	StatusCode int       `bun:",notnull"`
	OccurredAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (e *ApiUsageEvent) ToEntity() *entity.ApiUsageEvent {
	return &entity.ApiUsageEvent{
		ID:         e.ID,
		KeyID:      e.KeyID,
		Operation:  e.Operation,
		StatusCode: e.StatusCode,
		OccurredAt: e.OccurredAt,
	}
}

// Session represents the database model for the sessions table.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                string            `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID            string            `bun:",notnull,type:uuid"`
	DeviceID          string            `bun:",notnull,type:varchar(255)"`
	DeviceType        string            `bun:",notnull,type:varchar(50)"`
	ClientContext     map[string]string `bun:",type:jsonb"`
	Status            string            `bun:",notnull,type:varchar(20),default:'active'"`
	StartedAt         time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
	LastHeartbeatAt   time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
	LastPositionMs    *int64            `bun:","`
	LastTrackID       *string           `bun:",type:uuid"`
	EndedAt           *time.Time        `bun:","`
	EndedBy           *string           `bun:",type:varchar(20)"`
	TotalDurationMs   *int64            `bun:","`
	TracksPlayed      *int              `bun:","`
	TracksSkipped     *int              `bun:","`
	CompletionRate    *float64          `bun:","`

	User *User `bun:"rel:belongs-to,join:user_id=id,on_delete:CASCADE"`
}

func (s *Session) ToEntity() *entity.Session {
	out := &entity.Session{
		ID:              s.ID,
		UserID:          s.UserID,
		DeviceID:        s.DeviceID,
		DeviceType:      s.DeviceType,
		ClientContext:   s.ClientContext,
		Status:          entity.SessionStatus(s.Status),
		StartedAt:       s.StartedAt,
		LastHeartbeatAt: s.LastHeartbeatAt,
		LastPositionMs:  s.LastPositionMs,
		LastTrackID:     s.LastTrackID,
		EndedAt:         s.EndedAt,
	}
	if s.EndedBy != nil {
		reason := entity.SessionEndReason(*s.EndedBy)
		out.EndedBy = &reason
	}
	if s.TotalDurationMs != nil {
		out.Summary = &entity.SessionSummary{
			TotalDurationMs: *s.TotalDurationMs,
			TracksPlayed:    derefInt(s.TracksPlayed),
			TracksSkipped:   derefInt(s.TracksSkipped),
			CompletionRate:  derefFloat(s.CompletionRate),
		}
	}
	return out
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func FromNewSession(params *entity.NewSession) *Session {
	return &Session{
		UserID:        params.UserID,
		DeviceID:      params.DeviceID,
		DeviceType:    params.DeviceType,
		ClientContext: params.ClientContext,
	}
}

// Interaction represents the database model for the interactions table.
type Interaction struct {
	bun.BaseModel `bun:"table:interactions,alias:i"`

	ID               string            `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID           string            `bun:",notnull,type:uuid"`
	TrackID          string            `bun:",notnull,type:uuid"`
	SessionID        *string           `bun:",type:uuid"`
	Type             string            `bun:",notnull,type:varchar(30)"`
	CreatedAt        time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
	PlayDurationMs   *int64            `bun:","`
	PositionMs       *int64            `bun:","`
	Source           string            `bun:",notnull,type:varchar(50)"`
	SourceID         *string           `bun:",type:varchar(100)"`
	RecommendationID *string           `bun:",type:uuid"`
	DeviceType       string            `bun:",notnull,type:varchar(50)"`
	Extensions       map[string]string `bun:",type:jsonb"`

	User *User `bun:"rel:belongs-to,join:user_id=id,on_delete:CASCADE"`
}

func (i *Interaction) ToEntity() *entity.Interaction {
	return &entity.Interaction{
		ID:               i.ID,
		UserID:           i.UserID,
		TrackID:          i.TrackID,
		SessionID:        i.SessionID,
		Type:             entity.InteractionType(i.Type),
		CreatedAt:        i.CreatedAt,
		PlayDurationMs:   i.PlayDurationMs,
		PositionMs:       i.PositionMs,
		Source:           i.Source,
		SourceID:         i.SourceID,
		RecommendationID: i.RecommendationID,
		DeviceType:       i.DeviceType,
		Extensions:       i.Extensions,
	}
}

func FromNewInteraction(params *entity.NewInteraction) *Interaction {
	return &Interaction{
		UserID:           params.UserID,
		TrackID:          params.TrackID,
		SessionID:        params.SessionID,
		Type:             string(params.Type),
		PlayDurationMs:   params.PlayDurationMs,
		PositionMs:       params.PositionMs,
		Source:           params.Source,
		SourceID:         params.SourceID,
		RecommendationID: params.RecommendationID,
		DeviceType:       params.DeviceType,
		Extensions:       params.Extensions,
	}
}

// Impression represents the database model for the impressions table.
type Impression struct {
	bun.BaseModel `bun:"table:impressions,alias:imp"`

	ID               string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID           string    `bun:",notnull,type:uuid"`
	TrackID          string    `bun:",notnull,type:uuid"`
	RecommendationID string    `bun:",notnull,type:uuid,unique"`
	ModelType        string    `bun:",notnull,type:varchar(50)"`
	ModelVersion     string    `bun:",notnull,type:varchar(50)"`
	Score            float64   `bun:",notnull"`
	Position         int       `bun:",notnull"`
	Context          string    `bun:",type:varchar(50)"`
	ShownAt          time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	Clicked          bool      `bun:",notnull,default:false"`
	Played           bool      `bun:",notnull,default:false"`
	Liked            bool      `bun:",notnull,default:false"`

	User *User `bun:"rel:belongs-to,join:user_id=id,on_delete:CASCADE"`
}

func (imp *Impression) ToEntity() *entity.Impression {
	return &entity.Impression{
		ID:               imp.ID,
		UserID:           imp.UserID,
		TrackID:          imp.TrackID,
		RecommendationID: imp.RecommendationID,
		ModelType:        imp.ModelType,
		ModelVersion:     imp.ModelVersion,
		Score:            imp.Score,
		Position:         imp.Position,
		Context:          imp.Context,
		ShownAt:          imp.ShownAt,
		Clicked:          imp.Clicked,
		Played:           imp.Played,
		Liked:            imp.Liked,
	}
}

func FromNewImpression(params *entity.NewImpression) *Impression {
	return &Impression{
		UserID:           params.UserID,
		TrackID:          params.TrackID,
		RecommendationID: params.RecommendationID,
		ModelType:        params.ModelType,
		ModelVersion:     params.ModelVersion,
		Score:            params.Score,
		Position:         params.Position,
		Context:          params.Context,
		ShownAt:          params.ShownAt,
	}
}

// Track represents the database model for the tracks table.
type Track struct {
	bun.BaseModel `bun:"table:tracks,alias:t"`

	ID         string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	DurationMs int64     `bun:",notnull"`
	CreatedAt  time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (t *Track) ToEntity() *entity.Track {
	return &entity.Track{ID: t.ID, DurationMs: t.DurationMs, CreatedAt: t.CreatedAt}
}

// SearchQuery represents the database model for the search_queries table.
type SearchQuery struct {
	bun.BaseModel `bun:"table:search_queries,alias:sq"`

	ID          string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID      string    `bun:",notnull,type:uuid"`
	Query       string    `bun:",notnull,type:text"`
	ResultCount int       `bun:",notnull,default:0"`
	DeviceType  string    `bun:",type:varchar(50)"`
	OccurredAt  time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (q *SearchQuery) ToEntity() *entity.SearchQuery {
	return &entity.SearchQuery{
		ID: q.ID, UserID: q.UserID, Query: q.Query,
		ResultCount: q.ResultCount, DeviceType: q.DeviceType, OccurredAt: q.OccurredAt,
	}
}

// ContentView represents the database model for the content_views table.
type ContentView struct {
	bun.BaseModel `bun:"table:content_views,alias:cv"`

	ID          string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID      string    `bun:",notnull,type:uuid"`
	ContentType string    `bun:",notnull,type:varchar(50)"`
	ContentID   string    `bun:",notnull,type:varchar(100)"`
	DeviceType  string    `bun:",type:varchar(50)"`
	OccurredAt  time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (v *ContentView) ToEntity() *entity.ContentView {
	return &entity.ContentView{
		ID: v.ID, UserID: v.UserID, ContentType: v.ContentType,
		ContentID: v.ContentID, DeviceType: v.DeviceType, OccurredAt: v.OccurredAt,
	}
}

// PlayerEvent represents the database model for the player_events table.
type PlayerEvent struct {
	bun.BaseModel `bun:"table:player_events,alias:pe"`

	ID         string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID     string    `bun:",notnull,type:uuid"`
	SessionID  *string   `bun:",type:uuid"`
	TrackID    *string   `bun:",type:uuid"`
	EventType  string    `bun:",notnull,type:varchar(50)"`
	PositionMs *int64    `bun:","`
	OccurredAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (e *PlayerEvent) ToEntity() *entity.PlayerEvent {
	return &entity.PlayerEvent{
		ID: e.ID, UserID: e.UserID, SessionID: e.SessionID, TrackID: e.TrackID,
		EventType: e.EventType, PositionMs: e.PositionMs, OccurredAt: e.OccurredAt,
	}
}
