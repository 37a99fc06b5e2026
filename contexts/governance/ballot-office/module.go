package ballotoffice

import (
	"log/slog"
	"time"

	httpadapter "ballotbox/contexts/governance/ballot-office/adapters/http"
	"ballotbox/contexts/governance/ballot-office/adapters/memory"
	"ballotbox/contexts/governance/ballot-office/application/commands"
	"ballotbox/contexts/governance/ballot-office/application/queries"
	"ballotbox/contexts/governance/ballot-office/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Votes     commands.VoteUseCase
	Tokens    commands.TokenUseCase
	Overrides commands.OverrideUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Elections     ports.ElectionDirectory
	Votes         ports.VoteRepository
	Tokens        ports.TokenRepository
	Members       ports.MemberDirectory
	Meetings      ports.MeetingDirectory
	Overrides     ports.OverrideRepository
	Proxies       ports.ProxyRepository
	Audit         ports.AuditLog
	Notifier      ports.Notifier
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Minter        ports.TokenMinter
	OrgSalt       string
	SigningSecret string
	TokenTTL      time.Duration
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	voteUseCase := commands.VoteUseCase{
		Elections:     deps.Elections,
		Votes:         deps.Votes,
		Tokens:        deps.Tokens,
		Members:       deps.Members,
		Meetings:      deps.Meetings,
		Overrides:     deps.Overrides,
		Proxies:       deps.Proxies,
		Audit:         deps.Audit,
		Outbox:        deps.Outbox,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		OrgSalt:       deps.OrgSalt,
		SigningSecret: deps.SigningSecret,
		Logger:        deps.Logger,
	}
	tokenUseCase := commands.TokenUseCase{
		Elections: deps.Elections,
		Tokens:    deps.Tokens,
		Members:   deps.Members,
		Meetings:  deps.Meetings,
		Overrides: deps.Overrides,
		Proxies:   deps.Proxies,
		Notifier:  deps.Notifier,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Minter:    deps.Minter,
		OrgSalt:   deps.OrgSalt,
		TokenTTL:  deps.TokenTTL,
		Logger:    deps.Logger,
	}
	overrideUseCase := commands.OverrideUseCase{
		Elections: deps.Elections,
		Members:   deps.Members,
		Overrides: deps.Overrides,
		Proxies:   deps.Proxies,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	ballotUseCase := queries.BallotUseCase{
		Elections: deps.Elections,
		Tokens:    deps.Tokens,
		Clock:     deps.Clock,
	}
	auditUseCase := queries.AuditUseCase{
		Audit: deps.Audit,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:     voteUseCase,
			Tokens:    tokenUseCase,
			Overrides: overrideUseCase,
			Ballots:   ballotUseCase,
			Audit:     auditUseCase,
			Logger:    deps.Logger,
		},
		Votes:     voteUseCase,
		Tokens:    tokenUseCase,
		Overrides: overrideUseCase,
	}
}

func NewInMemoryModule(orgSalt string, signingSecret string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Elections:     store,
		Votes:         store,
		Tokens:        store,
		Members:       store,
		Meetings:      store,
		Overrides:     store,
		Proxies:       store,
		Audit:         store,
		Notifier:      store,
		Outbox:        store,
		Clock:         store,
		IDGen:         store,
		Minter:        store,
		OrgSalt:       orgSalt,
		SigningSecret: signingSecret,
		TokenTTL:      14 * 24 * time.Hour,
		Logger:        logger,
	})
	module.Store = store
	return module
}
