/*Package relfreq computes bigram relative frequencies over large text
corpora: for every pair of adjacent words (w1, w2), the count of the pair
divided by the total number of bigrams that start with w1.

The pipeline runs in two phases. Mappers tokenize input lines and emit a
unit weight for each adjacent word pair along with a unit weight for the
pair's first word ("the marginal"). Emitted weights are pre-aggregated and
partitioned by first word into intermediate bins. Reducers then sum each
bin's weights per key and normalize pair counts by their first word's
marginal total, which the partitioning guarantees is complete within the
bin.

The runtime model follows the serverless style: stateless, transient
executors controlled by a central driver. Jobs run locally by default and
can be shipped to AWS Lambda with input, intermediate, and output data
on S3.
*/
package relfreq
