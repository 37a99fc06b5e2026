package electionengine

import (
	"log/slog"

	httpadapter "ballotbox/contexts/governance/election-engine/adapters/http"
	"ballotbox/contexts/governance/election-engine/adapters/memory"
	"ballotbox/contexts/governance/election-engine/application/commands"
	"ballotbox/contexts/governance/election-engine/application/queries"
	"ballotbox/contexts/governance/election-engine/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Elections commands.ElectionUseCase
	Queries   queries.ElectionQueryUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Elections ports.ElectionRepository
	Ballots   ports.BallotReader
	Members   ports.MemberDirectory
	Meetings  ports.MeetingDirectory
	Notifier  ports.Notifier
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	electionUseCase := commands.ElectionUseCase{
		Elections: deps.Elections,
		Ballots:   deps.Ballots,
		Members:   deps.Members,
		Meetings:  deps.Meetings,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	queryUseCase := queries.ElectionQueryUseCase{
		Elections: deps.Elections,
	}
	return Module{
		Handler: httpadapter.Handler{
			Elections: electionUseCase,
			Queries:   queryUseCase,
			Logger:    deps.Logger,
		},
		Elections: electionUseCase,
		Queries:   queryUseCase,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Elections: store,
		Ballots:   store,
		Members:   store,
		Meetings:  store,
		Notifier:  store,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
