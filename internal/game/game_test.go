package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/arcana-duel/internal/catalog"
	"github.com/pefman/arcana-duel/internal/config"
	"github.com/pefman/arcana-duel/internal/engine"
	"github.com/pefman/arcana-duel/internal/models"
)

type fakeRecorder struct {
	combats int
	games   [][2]string
}

func (f *fakeRecorder) RecordCombat(models.CombatRecord) { f.combats++ }
func (f *fakeRecorder) RecordGame(w, l string)           { f.games = append(f.games, [2]string{w, l}) }

// duel builds a knight-vs-witch state without consuming any dice.
func duel(t *testing.T, faces ...int) (*Engine, *models.GameState) {
	t.Helper()
	cat := catalog.Default()
	pc, _, err := cat.Deck("knight")
	require.NoError(t, err)
	oc, _, err := cat.Deck("witch")
	require.NoError(t, err)
	e := NewEngine(config.DefaultRules(), engine.NewSequenceRoller(faces...))
	g := &models.GameState{
		ID:       "test",
		Round:    1,
		Phase:    models.PhaseResolution,
		Player:   models.NewActor(models.SidePlayer, "", pc),
		Opponent: models.NewActor(models.SideOpponent, "", oc),
	}
	g.Initiative = models.SidePlayer
	return e, g
}

func card(t *testing.T, key string) models.Card {
	t.Helper()
	c, err := catalog.Default().Card(key)
	require.NoError(t, err)
	return c
}

func TestTransitionTable(t *testing.T) {
	tcs := []struct {
		from models.Phase
		cond Conditions
		want models.Phase
	}{
		{models.PhaseInitiative, Conditions{}, models.PhaseDrawPlacement},
		{models.PhaseInitiative, Conditions{PendingThreat: true}, models.PhaseThreatResponse},
		{models.PhaseThreatResponse, Conditions{}, models.PhaseDrawPlacement},
		{models.PhaseDrawPlacement, Conditions{}, models.PhaseResolution},
		{models.PhaseResolution, Conditions{}, models.PhaseCleanup},
		{models.PhaseCleanup, Conditions{}, models.PhaseInitiative},
		{models.PhaseCleanup, Conditions{PendingThreat: true}, models.PhaseEndThreat},
		{models.PhaseEndThreat, Conditions{}, models.PhaseInitiative},
		{models.PhaseResolution, Conditions{Defeated: true}, models.PhaseGameOver},
		{models.PhaseInitiative, Conditions{PendingThreat: true, Defeated: true}, models.PhaseGameOver},
	}
	for _, tc := range tcs {
		got, err := Transition(tc.from, tc.cond)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %+v", tc.from, tc.cond)
	}

	_, err := Transition(models.PhaseGameOver, Conditions{})
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = Transition("BOGUS", Conditions{})
	assert.ErrorIs(t, err, ErrUnknownPhase)
}

func TestScoreTiers(t *testing.T) {
	rules := config.DefaultRules()
	in := AttackInput{Attacker: "a", Defender: "d", Card: "Slash", Stat: models.STR, Power: 5}

	tcs := []struct {
		atk, def int
		tier     models.Tier
		damage   int
	}{
		{20, 1, models.TierCritical, 10},
		{12, 5, models.TierStrong, 8},
		{8, 7, models.TierGlancing, 5},
		{9, 9, models.TierClash, 3},
		{6, 10, models.TierDeflect, 1},
		{4, 12, models.TierParry, 0},
		{1, 20, models.TierCriticalMiss, 0},
	}
	for _, tc := range tcs {
		rec := Score(rules, tc.atk, tc.def, in)
		assert.Equal(t, tc.tier, rec.Tier, "%d vs %d", tc.atk, tc.def)
		assert.Equal(t, tc.damage, rec.Damage, "%d vs %d", tc.atk, tc.def)
		assert.NotEmpty(t, rec.Logs)
	}
}

func TestScoreShieldNeverNegative(t *testing.T) {
	rec := Score(config.DefaultRules(), 8, 7, AttackInput{Power: 3, Shield: 10})
	assert.Equal(t, 0, rec.Damage)
	assert.Equal(t, "hp", rec.Pool)

	rec = Score(config.DefaultRules(), 8, 7, AttackInput{Power: 6, Shield: 2, AttackMod: 1})
	assert.Equal(t, models.TierGlancing, rec.Tier)
	assert.Equal(t, 4, rec.Damage)
}

func TestScoreIsDeterministic(t *testing.T) {
	in := AttackInput{Power: 7, AttackMod: 2, DefenseBonus: 1}
	a := Score(config.DefaultRules(), 13, 6, in)
	b := Score(config.DefaultRules(), 13, 6, in)
	assert.Equal(t, a, b)
}

func TestBuildBar(t *testing.T) {
	bar := BuildBar(models.SideOpponent, 3, 1)
	require.Len(t, bar, 4)
	owners := []models.Side{}
	for i, p := range bar {
		assert.Equal(t, i, p.Index)
		owners = append(owners, p.Owner)
	}
	assert.Equal(t, []models.Side{models.SideOpponent, models.SidePlayer, models.SidePlayer, models.SidePlayer}, owners)
	assert.Empty(t, BuildBar(models.SidePlayer, 0, 0))
}

func TestPlace(t *testing.T) {
	e, g := duel(t)
	g.Phase = models.PhaseDrawPlacement
	g.Bar = BuildBar(models.SidePlayer, 2, 1)
	slash, blow, mail := card(t, "slash"), card(t, "heavy_blow"), card(t, "chainmail")
	enc := card(t, "wolf_pack")
	g.Player.Hand = []models.Card{slash, blow, mail, enc}
	g.Player.AP = 2

	assert.ErrorIs(t, e.Place(g, models.SidePlayer, slash.ID, 1), ErrInvalidPosition)
	assert.ErrorIs(t, e.Place(g, models.SidePlayer, "nope", 0), ErrCardNotInHand)
	assert.ErrorIs(t, e.Place(g, models.SidePlayer, enc.ID, 0), ErrNotPlaceable)

	require.NoError(t, e.Place(g, models.SidePlayer, slash.ID, 0))
	assert.Equal(t, 1, g.Player.AP)
	assert.ErrorIs(t, e.Place(g, models.SidePlayer, blow.ID, 2), ErrNotEnoughAP)

	require.NoError(t, e.Place(g, models.SidePlayer, mail.ID, 0))
	assert.Equal(t, 0, g.Player.AP)
	assert.Len(t, g.Bar[0].Stack, 2)
	assert.Len(t, g.Player.Hand, 2)

	g.Phase = models.PhaseResolution
	assert.ErrorIs(t, e.Place(g, models.SidePlayer, blow.ID, 2), ErrWrongPhase)
}

func TestPlaceOneAttackPerPosition(t *testing.T) {
	e, g := duel(t)
	g.Phase = models.PhaseDrawPlacement
	g.Bar = BuildBar(models.SidePlayer, 3, 0)
	a, b := card(t, "slash"), card(t, "slash")
	g.Player.Hand = []models.Card{a, b}
	require.NoError(t, e.Place(g, models.SidePlayer, a.ID, 0))
	assert.ErrorIs(t, e.Place(g, models.SidePlayer, b.ID, 0), ErrStackFull)
}

func TestResolveCriticalHit(t *testing.T) {
	e, g := duel(t, 20, 1)
	rec := &fakeRecorder{}
	e.Recorder = rec
	g.Bar = models.ActionBar{{Index: 0, Owner: models.SidePlayer, Stack: []models.Card{card(t, "slash")}}}

	res, err := e.ResolveNext(g)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.TierCritical, res.Records[0].Tier)
	assert.True(t, res.Critical)
	assert.True(t, res.Done)
	assert.Equal(t, 16, g.Opponent.HP)
	assert.Equal(t, models.SideOpponent, g.Animation.Shake)
	assert.Len(t, g.Log, 1)
	assert.Equal(t, 1, rec.combats)
	assert.NotEmpty(t, res.Narration)

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseCleanup, g.Phase)
}

func TestResolveCriticalMissCostsMorale(t *testing.T) {
	e, g := duel(t, 1, 20)
	g.Bar = models.ActionBar{{Owner: models.SidePlayer, Stack: []models.Card{card(t, "slash")}}}
	_, err := e.ResolveNext(g)
	require.NoError(t, err)
	assert.Equal(t, g.Player.MaxMorale-1, g.Player.Morale)
	assert.Equal(t, g.Opponent.MaxHP, g.Opponent.HP)
}

func TestResolveSupportBeforeAttack(t *testing.T) {
	e, g := duel(t, 10, 10)
	g.Player.HP = 10
	g.Bar = models.ActionBar{{Owner: models.SidePlayer, Stack: []models.Card{card(t, "slash"), card(t, "potion"), card(t, "focus")}}}
	res, err := e.ResolveNext(g)
	require.NoError(t, err)
	assert.Equal(t, 18, g.Player.HP)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 2, res.Records[0].AttackBonus)
}

func TestMagicFizzlesWithoutEnergy(t *testing.T) {
	e, g := duel(t)
	g.Opponent.Energy = 1
	g.Bar = models.ActionBar{{Owner: models.SideOpponent, Stack: []models.Card{card(t, "firebolt")}}}
	res, err := e.ResolveNext(g)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, g.Opponent.Energy)
	assert.Equal(t, g.Player.MaxHP, g.Player.HP)
}

func TestTalkDamagesMorale(t *testing.T) {
	e, g := duel(t, 15, 5)
	g.Bar = models.ActionBar{{Owner: models.SidePlayer, Stack: []models.Card{card(t, "taunt")}}}
	res, err := e.ResolveNext(g)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "morale", res.Records[0].Pool)
	assert.Less(t, g.Opponent.Morale, g.Opponent.MaxMorale)
	assert.Equal(t, g.Opponent.MaxHP, g.Opponent.HP)
}

func TestDefeatEndsGameImmediately(t *testing.T) {
	e, g := duel(t, 20, 1)
	rec := &fakeRecorder{}
	e.Recorder = rec
	g.Opponent.HP = 3
	g.Pot.Add(card(t, "wolf_pack").Encounter.Loot...)
	g.Bar = models.ActionBar{
		{Owner: models.SidePlayer, Stack: []models.Card{card(t, "slash")}},
		{Owner: models.SideOpponent},
	}
	res, err := e.ResolveNext(g)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, models.PhaseGameOver, g.Phase)
	assert.Equal(t, models.SidePlayer, g.Winner)
	assert.Equal(t, models.SidePlayer, g.Pot.ClaimedBy)
	assert.Equal(t, 0, g.Opponent.HP)
	require.Len(t, rec.games, 1)

	assert.ErrorIs(t, e.Advance(g), ErrGameOver)
	_, err = e.ResolveNext(g)
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestAdvanceBlocksUntilResolved(t *testing.T) {
	e, g := duel(t)
	g.Bar = models.ActionBar{{Owner: models.SidePlayer}}
	assert.ErrorIs(t, e.Advance(g), ErrResolutionPending)
}

func TestThreatLootGoesToPotWhenRepelled(t *testing.T) {
	e, g := duel(t, 1, 20)
	g.Phase = models.PhaseThreatResponse
	g.PendingThreat = &models.Threat{Card: card(t, "wolf_pack"), Target: models.SidePlayer, Origin: "initiative"}

	assert.ErrorIs(t, e.Advance(g), ErrThreatUnanswered)
	_, err := e.RespondThreat(g, models.SideOpponent, "")
	assert.ErrorIs(t, err, ErrNotThreatTarget)

	rec, err := e.RespondThreat(g, models.SidePlayer, "")
	require.NoError(t, err)
	assert.Less(t, rec.Diff, 0)
	assert.Equal(t, 4, g.Pot.Gold)
	assert.True(t, g.PendingThreat.Answered)

	_, err = e.RespondThreat(g, models.SidePlayer, "")
	assert.ErrorIs(t, err, ErrNoThreat)
}

func TestThreatDefensiveCard(t *testing.T) {
	e, g := duel(t, 20, 1)
	g.Phase = models.PhaseEndThreat
	mail, slash := card(t, "chainmail"), card(t, "slash")
	g.Player.Hand = []models.Card{mail, slash}
	g.PendingThreat = &models.Threat{Card: card(t, "bandits"), Target: models.SidePlayer, Origin: "scenario"}

	_, err := e.RespondThreat(g, models.SidePlayer, slash.ID)
	assert.ErrorIs(t, err, ErrNotDefensive)

	rec, err := e.RespondThreat(g, models.SidePlayer, mail.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.DefenseBonus)
	assert.Len(t, g.Player.CardStack, 1)
	assert.Less(t, g.Player.HP, g.Player.MaxHP)
	assert.Zero(t, g.Pot.Gold)
}

func TestRepelledThreatRollsLootGold(t *testing.T) {
	e, g := duel(t, 1, 20, 4)
	g.Phase = models.PhaseThreatResponse
	bandits := card(t, "bandits")
	g.PendingThreat = &models.Threat{Card: bandits, Target: models.SidePlayer, Origin: "initiative"}

	rec, err := e.RespondThreat(g, models.SidePlayer, "")
	require.NoError(t, err)
	assert.Less(t, rec.Diff, 0)
	assert.Equal(t, 4+6, g.Pot.Gold, "base gold plus 1d6+2 rolling a 4")
	require.Len(t, g.Pot.Cards, 1)
	assert.Equal(t, 10, g.Pot.Cards[0].Loot.Gold)
	assert.Empty(t, g.Pot.Cards[0].Loot.GoldRoll)
	assert.Equal(t, "1d6+2", bandits.Encounter.Loot[0].Loot.GoldRoll, "the encounter card keeps its dice")
	assert.Contains(t, g.Narration, "Coin Purse holds 6 more gold (1d6+2).")
}

func TestNaturalOneDrawsThreatForPlayer(t *testing.T) {
	e, g := duel(t, 1, 10)
	g.Phase = models.PhaseCleanup
	g.Encounters.Cards = []models.Card{card(t, "storm"), card(t, "wolf_pack")}

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseInitiative, g.Phase)
	assert.Equal(t, 2, g.Round)
	assert.Equal(t, models.InitiativeRolls{Player: 1, Opponent: 10}, g.Rolls)
	assert.Equal(t, models.SideOpponent, g.Initiative)
	require.NotNil(t, g.PendingThreat)
	assert.Equal(t, "wolf_pack", g.PendingThreat.Card.Key)
	assert.Equal(t, models.SidePlayer, g.PendingThreat.Target)
	assert.Equal(t, "initiative", g.PendingThreat.Origin)
	assert.Len(t, g.Encounters.Cards, 1, "scenarios are never drawn as threats")

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseThreatResponse, g.Phase)
	assert.False(t, g.PendingThreat.Answered, "the player answers their own threats")
	assert.ErrorIs(t, e.Advance(g), ErrThreatUnanswered)
}

func TestOpponentThreatIsAnsweredAutomatically(t *testing.T) {
	e, g := duel(t, 10, 1, 15, 5)
	g.Phase = models.PhaseCleanup
	g.Encounters.Cards = []models.Card{card(t, "wolf_pack")}

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseInitiative, g.Phase)
	require.NotNil(t, g.PendingThreat)
	assert.Equal(t, models.SideOpponent, g.PendingThreat.Target)

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseThreatResponse, g.Phase)
	assert.True(t, g.PendingThreat.Answered)
	assert.Equal(t, 16, g.Opponent.HP)
	assert.Equal(t, 26, g.Opponent.MaxHP)
	assert.Zero(t, g.Pot.Gold, "a threat that lands keeps its loot")
	require.Len(t, g.Encounters.Discard, 1)

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseDrawPlacement, g.Phase)
	assert.Nil(t, g.PendingThreat)
}

func TestDoubleOneDrawsOnlyThePlayersThreat(t *testing.T) {
	e, g := duel(t, 1, 1)
	g.Phase = models.PhaseCleanup
	g.Encounters.Cards = []models.Card{card(t, "wolf_pack"), card(t, "bandits")}

	require.NoError(t, e.Advance(g))
	require.NotNil(t, g.PendingThreat)
	assert.Equal(t, models.SidePlayer, g.PendingThreat.Target)
	assert.Equal(t, "wolf_pack", g.PendingThreat.Card.Key)
	require.Len(t, g.Encounters.Cards, 1)
	assert.Equal(t, "bandits", g.Encounters.Cards[0].Key)
}

func TestNaturalTwentyDrawsFortune(t *testing.T) {
	e, g := duel(t, 20, 8)
	g.Phase = models.PhaseCleanup
	g.Player.Morale = 5
	g.Encounters.Cards = []models.Card{card(t, "wolf_pack"), card(t, "wandering_merchant")}

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.SidePlayer, g.Initiative)
	assert.Nil(t, g.PendingThreat)
	assert.Equal(t, 6, g.Player.Morale, "the trinket's morale effect applies to the roller")
	assert.Equal(t, 2, g.Pot.Gold)
	require.Len(t, g.Pot.Cards, 1)
	assert.Equal(t, "trinket", g.Pot.Cards[0].Key)
	require.Len(t, g.Encounters.Cards, 1)
	assert.Equal(t, "wolf_pack", g.Encounters.Cards[0].Key)
	require.Len(t, g.Encounters.Discard, 1)
	assert.Equal(t, "wandering_merchant", g.Encounters.Discard[0].Key)

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseDrawPlacement, g.Phase)
}

func TestCleanupTicksRegen(t *testing.T) {
	e, g := duel(t)
	g.Bar = models.ActionBar{}
	g.Player.HP = g.Player.MaxHP - 10
	g.Player.AddStatus(models.Effect{Kind: models.EffectRegen, Amount: 4, Duration: 2}, "salve")

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseCleanup, g.Phase)
	assert.Equal(t, g.Player.MaxHP-6, g.Player.HP)
	require.Len(t, g.Player.StatusEffects, 1)
	assert.Equal(t, 1, g.Player.StatusEffects[0].Remaining)

	g.Phase = models.PhaseResolution
	require.NoError(t, e.Advance(g))
	assert.Equal(t, g.Player.MaxHP-2, g.Player.HP)
	assert.Empty(t, g.Player.StatusEffects)
}

func TestCleanupTicksStatuses(t *testing.T) {
	e, g := duel(t)
	g.Round = 1
	g.Player.Energy = 0
	g.Player.AddStatus(models.Effect{Kind: models.EffectPoison, Amount: 3, Duration: 1}, "hex")
	g.Player.Equip(card(t, "chainmail"))
	slash := card(t, "slash")
	g.Bar = models.ActionBar{{Owner: models.SidePlayer, Stack: []models.Card{slash}, Resolved: true}}

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseCleanup, g.Phase)
	assert.Equal(t, g.Player.MaxHP-3, g.Player.HP)
	assert.Empty(t, g.Player.StatusEffects)
	assert.Equal(t, 2, g.Player.Energy)
	assert.Len(t, g.Player.DiscardPile, 1)
	assert.Len(t, g.Player.CardStack, 1)
	assert.Nil(t, g.Bar)
}

func TestScenarioThreatTargetsInitiativeLoser(t *testing.T) {
	e, g := duel(t)
	g.Round = 2
	g.Initiative = models.SideOpponent
	g.Encounters.Cards = []models.Card{card(t, "wolf_pack"), card(t, "ambush")}
	g.Bar = models.ActionBar{}

	require.NoError(t, e.Advance(g))
	require.NotNil(t, g.PendingThreat)
	assert.Equal(t, models.SidePlayer, g.PendingThreat.Target)
	assert.Equal(t, "scenario", g.PendingThreat.Origin)
	assert.Len(t, g.Encounters.Cards, 1)

	require.NoError(t, e.Advance(g))
	assert.Equal(t, models.PhaseEndThreat, g.Phase)
}

func TestNewGameUnknownDeck(t *testing.T) {
	e := NewEngine(config.DefaultRules(), engine.NewRoller(1))
	_, err := e.NewGame(catalog.Default(), Setup{PlayerDeck: "knight", OpponentDeck: "nope"})
	assert.True(t, errors.Is(err, catalog.ErrUnknownDeck))
}

func TestSeededGamesReplay(t *testing.T) {
	run := func() *models.GameState {
		e := NewEngine(config.DefaultRules(), engine.NewRoller(42))
		g, err := e.NewGame(catalog.Default(), Setup{ID: "g", Seed: 42, PlayerDeck: "bard", OpponentDeck: "witch"})
		require.NoError(t, err)
		require.NoError(t, e.Play(g, 100))
		return g
	}
	a, b := run(), run()
	assert.Equal(t, a.Winner, b.Winner)
	assert.Equal(t, a.Round, b.Round)
	assert.Equal(t, a.Player.HP, b.Player.HP)
	assert.Equal(t, a.Log, b.Log)
}

func TestSimulatedGamesKeepInvariants(t *testing.T) {
	decks := []string{"knight", "witch", "bard"}
	for seed := int64(1); seed <= 30; seed++ {
		e := NewEngine(config.DefaultRules(), engine.NewRoller(seed))
		g, err := e.NewGame(catalog.Default(), Setup{
			Seed:         seed,
			PlayerDeck:   decks[seed%3],
			OpponentDeck: decks[(seed+1)%3],
		})
		require.NoError(t, err)

		for steps := 0; g.Phase != models.PhaseGameOver; steps++ {
			require.Less(t, steps, 10000, "seed %d did not finish", seed)
			require.NoError(t, e.Step(g), "seed %d", seed)
			for _, a := range []*models.Actor{g.Player, g.Opponent} {
				require.GreaterOrEqual(t, a.HP, 0)
				require.LessOrEqual(t, a.HP, a.MaxHP)
				require.GreaterOrEqual(t, a.AP, 0)
				require.GreaterOrEqual(t, a.Energy, 0)
				require.GreaterOrEqual(t, a.Morale, 0)
			}
			if g.Phase == models.PhaseDrawPlacement {
				require.Len(t, g.Bar, g.Player.MaxAP+g.Opponent.MaxAP)
			}
		}
		assert.True(t, g.Player.Defeated() || g.Opponent.Defeated(), "seed %d", seed)
	}
}
