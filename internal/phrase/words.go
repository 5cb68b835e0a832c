package phrase

// actionVerbs holds inflected forms of verbs that signal a reportable event.
// Grouped loosely by beat; the set is matched per-token after lowercasing.
var actionVerbs = buildSet(
	// legislative
	"passes", "passed", "pass", "votes", "voted", "vote",
	"approves", "approved", "approve", "rejects", "rejected", "reject",
	"introduces", "introduced", "introduce", "repeals", "repealed", "repeal",
	"ratifies", "ratified", "ratify", "vetoes", "vetoed", "veto",
	"overrides", "overrode", "overridden", "enacts", "enacted", "enact",
	"amends", "amended", "amend", "filibusters", "filibustered",
	"confirms", "confirmed", "confirm", "nominates", "nominated", "nominate",
	"impeaches", "impeached", "impeach", "censures", "censured",
	"subpoenas", "subpoenaed", "advances", "advanced", "advance",
	"stalls", "stalled", "tables", "tabled", "drafts", "drafted",
	// executive
	"signs", "signed", "sign", "orders", "ordered", "order",
	"announces", "announced", "announce", "declares", "declared", "declare",
	"issues", "issued", "issue", "pardons", "pardoned", "pardon",
	"fires", "fired", "fire", "hires", "hired", "hire",
	"appoints", "appointed", "appoint", "resigns", "resigned", "resign",
	"deploys", "deployed", "deploy", "authorizes", "authorized", "authorize",
	"bans", "banned", "ban", "suspends", "suspended", "suspend",
	"revokes", "revoked", "revoke", "imposes", "imposed", "impose",
	"lifts", "lifted", "lift", "expands", "expanded", "expand",
	"cuts", "cut", "freezes", "froze", "frozen", "freeze",
	"ousts", "ousted", "oust", "replaces", "replaced", "replace",
	"dissolves", "dissolved", "dissolve", "names", "named",
	"unveils", "unveiled", "unveil", "proposes", "proposed", "propose",
	"scraps", "scrapped", "scrap", "delays", "delayed", "delay",
	"cancels", "canceled", "cancelled", "cancel", "extends", "extended", "extend",
	// judicial
	"rules", "ruled", "rule", "overturns", "overturned", "overturn",
	"upholds", "upheld", "uphold", "blocks", "blocked", "block",
	"strikes", "struck", "strike", "dismisses", "dismissed", "dismiss",
	"convicts", "convicted", "convict", "acquits", "acquitted", "acquit",
	"sentences", "sentenced", "sentence", "indicts", "indicted", "indict",
	"charges", "charged", "charge", "sues", "sued", "sue",
	"appeals", "appealed", "appeal", "grants", "granted", "grant",
	"denies", "denied", "deny", "halts", "halted", "halt",
	"testifies", "testified", "testify", "pleads", "pleaded", "pled", "plead",
	"settles", "settled", "settle", "fines", "fined",
	"disbars", "disbarred", "exonerates", "exonerated", "exonerate",
	// law enforcement
	"arrests", "arrested", "arrest", "raids", "raided", "raid",
	"detains", "detained", "detain", "seizes", "seized", "seize",
	"investigates", "investigated", "investigate", "probes", "probed", "probe",
	"searches", "searched", "deports", "deported", "deport",
	"extradites", "extradited", "apprehends", "apprehended",
	"shoots", "shot", "shoot", "kills", "killed", "kill",
	"stabs", "stabbed", "robs", "robbed", "kidnaps", "kidnapped",
	"smuggles", "smuggled", "arraigns", "arraigned",
	// diplomatic
	"negotiates", "negotiated", "negotiate", "sanctions", "sanctioned",
	"recalls", "recalled", "recall", "expels", "expelled", "expel",
	"meets", "met", "meet", "agrees", "agreed", "agree",
	"withdraws", "withdrew", "withdrawn", "withdraw",
	"severs", "severed", "brokers", "brokered", "broker",
	"mediates", "mediated", "visits", "visited", "visit",
	"hosts", "hosted", "host", "condemns", "condemned", "condemn",
	"normalizes", "normalized", "recognizes", "recognized", "recognize",
	// conflict
	"attacks", "attacked", "attack", "invades", "invaded", "invade",
	"bombs", "bombed", "bomb", "launches", "launched", "launch",
	"retaliates", "retaliated", "retaliate", "captures", "captured", "capture",
	"surrenders", "surrendered", "surrender", "escalates", "escalated", "escalate",
	"clashes", "clashed", "clash", "ambushes", "ambushed",
	"destroys", "destroyed", "destroy", "downs", "downed",
	"intercepts", "intercepted", "intercept", "shells", "shelled",
	"storms", "stormed", "storm", "besieges", "besieged",
	"liberates", "liberated", "occupies", "occupied", "occupy",
	// economic
	"raises", "raised", "raise", "lowers", "lowered", "lower",
	"hikes", "hiked", "hike", "slashes", "slashed", "slash",
	"surges", "surged", "surge", "plunges", "plunged", "plunge",
	"rallies", "rallied", "rally", "crashes", "crashed", "crash",
	"soars", "soared", "soar", "tumbles", "tumbled", "tumble",
	"defaults", "defaulted", "default", "acquires", "acquired", "acquire",
	"merges", "merged", "merge", "buys", "bought", "buy",
	"sells", "sold", "sell", "invests", "invested", "invest",
	"posts", "posted", "reports", "reported", "report",
	"beats", "beat", "misses", "missed", "miss",
	"files", "filed", "file", "bails", "bailed",
	"downgrades", "downgraded", "upgrades", "upgraded",
	"tariffs", "taxes", "taxed", "nationalizes", "nationalized",
	// general
	"wins", "won", "win", "loses", "lost", "lose",
	"dies", "died", "die", "begins", "began", "begin",
	"ends", "ended", "end", "opens", "opened", "open",
	"closes", "closed", "close", "reveals", "revealed", "reveal",
	"warns", "warned", "warn", "threatens", "threatened", "threaten",
	"urges", "urged", "urge", "demands", "demanded", "demand",
	"accuses", "accused", "accuse", "admits", "admitted", "admit",
	"claims", "claimed", "claim", "faces", "faced", "face",
	"seeks", "sought", "seek", "plans", "planned", "plan",
	"prepares", "prepared", "prepare", "considers", "considered", "consider",
	"releases", "released", "release", "publishes", "published", "publish",
	"collapses", "collapsed", "collapse", "erupts", "erupted", "erupt",
	"explodes", "exploded", "explode", "evacuates", "evacuated", "evacuate",
	"rescues", "rescued", "rescue", "recovers", "recovered", "recover",
	"injures", "injured", "injure", "wounds", "wounded", "wound",
	"hospitalizes", "hospitalized", "quits", "quit",
	"slams", "slammed", "slam", "blasts", "blasted", "blast",
	"defends", "defended", "defend", "apologizes", "apologized", "apologize",
	"cancels", "topples", "toppled", "topple",
	"strands", "stranded", "derails", "derailed", "derail",
	"sinks", "sank", "sunk", "sink", "burns", "burned", "burn",
	"floods", "flooded", "flood", "spreads", "spread",
	"hits", "hit", "strikes", "sweeps", "swept", "sweep",
	"kicks", "kicked", "sparks", "sparked", "spark",
	"triggers", "triggered", "trigger", "prompts", "prompted", "prompt",
	"forces", "forced", "force", "suffers", "suffered", "suffer",
)

// eventNouns are nouns that by themselves mark a phrase as describing an
// event rather than naming an entity.
var eventNouns = buildSet(
	"ruling", "indictment", "ban", "attack", "verdict", "arrest",
	"raid", "shooting", "explosion", "blast", "crash", "ceasefire",
	"impeachment", "resignation", "shutdown", "strike", "protest",
	"riot", "election", "recount", "runoff", "bill", "law",
	"decree", "summit", "deal", "agreement", "treaty", "accord",
	"scandal", "probe", "investigation", "lawsuit", "trial", "hearing",
	"testimony", "conviction", "acquittal", "sentencing", "pardon",
	"veto", "confirmation", "nomination", "merger", "acquisition",
	"bankruptcy", "layoffs", "furlough", "recall", "outbreak",
	"pandemic", "epidemic", "hurricane", "earthquake", "wildfire",
	"tornado", "tsunami", "landslide", "flooding", "blizzard",
	"evacuation", "rescue", "crisis", "emergency", "assassination",
	"coup", "invasion", "airstrike", "bombing", "massacre",
	"kidnapping", "hostage", "breach", "hack", "leak",
	"fraud", "embezzlement", "bribery", "collusion", "espionage",
	"death", "funeral", "victory", "defeat", "upset",
	"blackout", "derailment", "collision", "spill", "meltdown",
	"standoff", "shootout", "manhunt", "lockdown", "curfew",
	"boycott", "walkout", "mutiny", "defection", "crackdown",
	"selloff", "downturn", "recession", "inflation", "default",
	"stampede", "collapse", "sinking", "wreck", "outage",
)

// fillerWords are skipped when taking the leading non-trivial words of a
// headline for fallback label generation.
var fillerWords = buildSet(
	"a", "an", "the", "to", "of", "in", "on", "for", "at", "by",
	"with", "as", "is", "are", "was", "were", "be", "been", "being",
	"and", "or", "but", "after", "before", "amid", "over", "from",
	"its", "his", "her", "their", "this", "that", "these", "those",
	"has", "have", "had", "will", "would", "could", "should", "may",
)

func buildSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
