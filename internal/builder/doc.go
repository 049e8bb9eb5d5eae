/*
Package builder turns a loaded config.Model into something the executor can
run. It is the bridge between the static configuration model (the 'config'
package) and the dynamic execution engine (the 'graph' and 'executor'
packages).

Construction happens in phases:

 1. Evaluation context: variable defaults are merged with values given on the
    command line, and the environment is exposed as `env.*`.

 2. Components: each component block is handed to its provider factory and
    the resulting backend is registered under its ID.

 3. Nodes: each node block is decoded into its creation and execution configs
    and a *node.Node is created, resolving its components.

 4. Linking: explicit `edge` blocks and the `inputs` list of each node become
    edges. An input's slot is its position in the list.

The result is a graph.Definition; validation (cycles, types, reachability) is
left to graph.Compile.
*/
package builder
