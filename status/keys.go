package status

// Metric keys published by the runtime
const (
	EngineTicks   = "engine.ticks"
	EngineSorts   = "engine.sorts"
	EngineModules = "engine.modules"
	EngineTasks   = "engine.tasks"

	FSMTransitions = "fsm.transitions"

	ProcedureCurrent = "procedure.current"

	AssetProgress = "asset.progress"
	AssetPending  = "asset.pending"
	AssetReady    = "asset.ready"
)
