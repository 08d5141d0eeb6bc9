package shell

import "errors"

const helpText = `commands:

solve <n> [r1 r2 ...]          optimal value and first action for a season
                               with n matches left; ratings default to mu
                               (use -accounts N to size an all-mu roster)
sim <policy> <n> <episodes> [r1 r2 ...]
                               Monte Carlo run under a policy: one of
                               optimal, random, greedy, fixed (-index I)
sim log                        stream per-episode logs to /tmp/ladder_simlog
hist [-bins B]                 terminal histogram of the last sim's finals
compare <n> <episodes> [r1 r2 ...]
                               run the standard policy set and record results
runs                           list recorded simulation runs
set [threads|seed <value>]     show or change simulation settings
params                         show rating parameters and cache locations
help [command]                 this text
exit                           leave the shell
`

var helpTopics = map[string]string{
	"solve": `solve <n> [r1 r2 ...]

Computes the expected final max rating when playing optimally with n matches
remaining, and the account to play next (or "stop"). Each trailing number is
one account's current rating; with none given, pass -accounts N for N
accounts all starting at mu.

Examples:
  solve 10
  solve 50 1520 1480
  solve 30 -accounts 3`,
	"sim": `sim <policy> <n> <episodes> [r1 r2 ...]

Simulates many independent seasons under a policy and reports the mean final
rating with a confidence interval. Policies: optimal, random, greedy, fixed.
The fixed policy plays account -index I (default 0) the whole season.

Examples:
  sim optimal 50 10000 1500 1500
  sim fixed 30 5000 -index 1 1520 1480`,
	"compare": `compare <n> <episodes> [r1 r2 ...]

Runs optimal, random, greedy, and one fixed policy per account rank against
the same scenario, records each summary in the results database, and prints
a comparison table.`,
	"hist": `hist [-bins B]

Prints a terminal histogram of the final ratings from the most recent sim,
with B bins (default 15).`,
}

func usage(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return msg(helpText), nil
	}
	topic, ok := helpTopics[cmd.args[0]]
	if !ok {
		return nil, errors.New("no extra help for " + cmd.args[0])
	}
	return msg(topic), nil
}
