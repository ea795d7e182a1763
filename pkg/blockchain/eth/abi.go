package eth

// IdFactoryABI is the subset of the OnchainID IdFactory interface used by the service
const IdFactoryABI = `[
  {"type":"function","name":"createIdentity","stateMutability":"nonpayable",
   "inputs":[{"name":"_wallet","type":"address"},{"name":"_salt","type":"string"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getIdentity","stateMutability":"view",
   "inputs":[{"name":"_wallet","type":"address"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"isSaltTaken","stateMutability":"view",
   "inputs":[{"name":"_salt","type":"string"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"owner","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"address"}]}
]`

// IdentityABI is the ERC-735 claim holder interface of an identity contract
const IdentityABI = `[
  {"type":"function","name":"getClaimIdsByTopic","stateMutability":"view",
   "inputs":[{"name":"_topic","type":"uint256"}],
   "outputs":[{"name":"claimIds","type":"bytes32[]"}]},
  {"type":"function","name":"getClaim","stateMutability":"view",
   "inputs":[{"name":"_claimId","type":"bytes32"}],
   "outputs":[
     {"name":"topic","type":"uint256"},
     {"name":"scheme","type":"uint256"},
     {"name":"issuer","type":"address"},
     {"name":"signature","type":"bytes"},
     {"name":"data","type":"bytes"},
     {"name":"uri","type":"string"}]},
  {"type":"function","name":"addClaim","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_topic","type":"uint256"},
     {"name":"_scheme","type":"uint256"},
     {"name":"_issuer","type":"address"},
     {"name":"_signature","type":"bytes"},
     {"name":"_data","type":"bytes"},
     {"name":"_uri","type":"string"}],
   "outputs":[{"name":"claimRequestId","type":"bytes32"}]}
]`

// ClaimIssuerABI is the claim validity interface of a ClaimIssuer contract
const ClaimIssuerABI = `[
  {"type":"function","name":"isClaimValid","stateMutability":"view",
   "inputs":[
     {"name":"_identity","type":"address"},
     {"name":"claimTopic","type":"uint256"},
     {"name":"sig","type":"bytes"},
     {"name":"data","type":"bytes"}],
   "outputs":[{"name":"claimValid","type":"bool"}]}
]`
